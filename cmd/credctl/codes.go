package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/credlife"
)

func newCodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Create or verify one-time codes",
	}
	cmd.AddCommand(newCodeCreateCmd(a), newCodeVerifyCmd(a))
	return cmd
}

func parsePurpose(s string) (credlife.Purpose, error) {
	p := credlife.Purpose(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown purpose %q (want %s or %s)", s, credlife.PurposeEmailVerification, credlife.PurposePasswordReset)
	}
	return p, nil
}

func newCodeCreateCmd(a *app) *cobra.Command {
	var (
		subject string
		purpose string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a code for a subject and purpose, honoring the resend throttle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := parsePurpose(purpose)
			if err != nil {
				return err
			}
			engine, closeFn, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			code, err := engine.CreateCode(cmd.Context(), subject, p)
			if err != nil {
				var cerr *credlife.Error
				if errors.As(err, &cerr) && cerr.Kind == credlife.KindThrottleActive {
					return fmt.Errorf("a code was sent recently, retry in %s", cerr.RetryAfter)
				}
				return fmt.Errorf("create failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject identifier")
	cmd.Flags().StringVarP(&purpose, "purpose", "p", string(credlife.PurposeEmailVerification), "code purpose")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newCodeVerifyCmd(a *app) *cobra.Command {
	var (
		subject string
		purpose string
	)

	cmd := &cobra.Command{
		Use:   "verify <code>",
		Short: "Consume a code if it matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePurpose(purpose)
			if err != nil {
				return err
			}
			engine, closeFn, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := engine.VerifyCode(cmd.Context(), subject, p, args[0]); err != nil {
				return fmt.Errorf("verify failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject identifier")
	cmd.Flags().StringVarP(&purpose, "purpose", "p", string(credlife.PurposeEmailVerification), "code purpose")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
