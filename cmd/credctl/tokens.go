package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/credlife"
)

type pairView struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	AccessExpiresAt  string `json:"access_expires_at"`
	RefreshExpiresAt string `json:"refresh_expires_at"`
}

func writePair(w io.Writer, format string, pair credlife.TokenPair) error {
	v := pairView{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  formatTime(pair.AccessExpiresAt),
		RefreshExpiresAt: formatTime(pair.RefreshExpiresAt),
	}
	if format == outputJSON {
		return printJSON(w, v)
	}
	return printKV(w, [][]any{
		{"access_token", v.AccessToken},
		{"access_expires_at", v.AccessExpiresAt},
		{"refresh_token", v.RefreshToken},
		{"refresh_expires_at", v.RefreshExpiresAt},
	})
}

func newIssueCmd(a *app) *cobra.Command {
	var (
		subject string
		email   string
		role    string
		extra   map[string]string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token pair, replacing the subject's active pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			engine, closeFn, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			pair, err := engine.IssueSession(cmd.Context(), subject, credlife.Attributes{
				Email: email,
				Role:  role,
				Extra: extra,
			})
			if err != nil {
				return fmt.Errorf("issue failed: %w", err)
			}
			return writePair(cmd.OutOrStdout(), output, pair)
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject identifier")
	cmd.Flags().StringVar(&email, "email", "", "email attribute")
	cmd.Flags().StringVar(&role, "role", "", "role attribute")
	cmd.Flags().StringToStringVar(&extra, "attr", nil, "extra attributes as key=value")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

type tokenView struct {
	ID        string            `json:"id"`
	Subject   string            `json:"subject"`
	Type      string            `json:"type"`
	Email     string            `json:"email,omitempty"`
	Role      string            `json:"role,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
	IssuedAt  string            `json:"issued_at"`
	ExpiresAt string            `json:"expires_at"`
}

func newVerifyCmd(a *app) *cobra.Command {
	var (
		typ    string
		output string
	)

	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a token's signature, expiry, type and revocation state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			expected, err := parseTokenType(typ)
			if err != nil {
				return err
			}
			engine, closeFn, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			tok, err := engine.VerifyToken(cmd.Context(), strings.TrimSpace(args[0]), expected)
			if err != nil {
				return fmt.Errorf("verify failed: %w", err)
			}

			v := tokenView{
				ID:        tok.ID,
				Subject:   tok.Subject,
				Type:      string(tok.Type),
				Email:     tok.Attributes.Email,
				Role:      tok.Attributes.Role,
				Extra:     tok.Attributes.Extra,
				IssuedAt:  formatTime(tok.IssuedAt),
				ExpiresAt: formatTime(tok.ExpiresAt),
			}
			if output == outputJSON {
				return printJSON(cmd.OutOrStdout(), v)
			}
			rows := [][]any{
				{"id", v.ID},
				{"subject", v.Subject},
				{"type", v.Type},
				{"email", v.Email},
				{"role", v.Role},
				{"issued_at", v.IssuedAt},
				{"expires_at", v.ExpiresAt},
			}
			for k, val := range v.Extra {
				rows = append(rows, []any{"attr." + k, val})
			}
			return printKV(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", string(credlife.TokenAccess), "expected token type: access or refresh")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	return cmd
}

type statusView struct {
	tokenView
	Remaining    string `json:"remaining"`
	Excluded     bool   `json:"excluded"`
	ExclusionTTL string `json:"exclusion_ttl,omitempty"`
	Active       bool   `json:"active"`
	SlotTTL      string `json:"slot_ttl,omitempty"`
}

func formatTTL(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.Round(time.Second).String()
}

func newInspectCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Show a token's exclusion entry and active slot",
		Long: `Inspect checks only the signature, then reports whether the token is
excluded and for how long, and whether it still holds its subject's active
slot. Expired and revoked tokens are reported rather than rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			engine, closeFn, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			st, err := engine.InspectToken(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("inspect failed: %w", err)
			}

			v := statusView{
				tokenView: tokenView{
					ID:        st.Token.ID,
					Subject:   st.Token.Subject,
					Type:      string(st.Token.Type),
					Email:     st.Token.Attributes.Email,
					Role:      st.Token.Attributes.Role,
					Extra:     st.Token.Attributes.Extra,
					IssuedAt:  formatTime(st.Token.IssuedAt),
					ExpiresAt: formatTime(st.Token.ExpiresAt),
				},
				Remaining:    formatTTL(st.Remaining),
				Excluded:     st.Excluded,
				ExclusionTTL: formatTTL(st.ExclusionTTL),
				Active:       st.Active,
				SlotTTL:      formatTTL(st.SlotTTL),
			}
			if v.Remaining == "" {
				v.Remaining = "expired"
			}
			if output == outputJSON {
				return printJSON(cmd.OutOrStdout(), v)
			}
			return printKV(cmd.OutOrStdout(), [][]any{
				{"id", v.ID},
				{"subject", v.Subject},
				{"type", v.Type},
				{"expires_at", v.ExpiresAt},
				{"remaining", v.Remaining},
				{"excluded", v.Excluded},
				{"exclusion_ttl", v.ExclusionTTL},
				{"active", v.Active},
				{"slot_ttl", v.SlotTTL},
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	return cmd
}

func parseTokenType(s string) (credlife.TokenType, error) {
	switch credlife.TokenType(s) {
	case credlife.TokenAccess, credlife.TokenRefresh:
		return credlife.TokenType(s), nil
	default:
		return "", fmt.Errorf("unknown token type %q", s)
	}
}

func newRotateCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "rotate <refresh-token>",
		Short: "Consume a refresh token and issue a new pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			engine, closeFn, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			pair, err := engine.RotateSession(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("rotate failed: %w", err)
			}
			return writePair(cmd.OutOrStdout(), output, pair)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")
	return cmd
}

func newRevokeCmd(a *app) *cobra.Command {
	var (
		access  string
		refresh string
		subject string
	)

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke presented tokens, or every active token of a subject",
		Long: `Revoke excludes the given tokens for their remaining lifetime and clears
their active slots. With --subject, whatever pair is currently active for the
subject is revoked instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subject == "" && access == "" && refresh == "" {
				return fmt.Errorf("provide --access, --refresh or --subject")
			}
			if subject != "" && (access != "" || refresh != "") {
				return fmt.Errorf("--subject cannot be combined with --access or --refresh")
			}
			engine, closeFn, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if subject != "" {
				if err := engine.RevokeAllForSubject(cmd.Context(), subject); err != nil {
					return fmt.Errorf("revoke failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked active tokens of %s\n", subject)
				return nil
			}

			if err := engine.RevokeSession(cmd.Context(), access, refresh); err != nil {
				return fmt.Errorf("revoke failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "revoked")
			return nil
		},
	}
	cmd.Flags().StringVar(&access, "access", "", "access token to revoke")
	cmd.Flags().StringVar(&refresh, "refresh", "", "refresh token to revoke")
	cmd.Flags().StringVar(&subject, "subject", "", "revoke the subject's active pair")
	return cmd
}
