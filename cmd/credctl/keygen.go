package main

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	privateKeyFile = "private.pem"
	publicKeyFile  = "public.pem"
	rsaKeyBits     = 2048
)

func newKeygenCmd() *cobra.Command {
	var (
		method string
		outDir string
	)

	cmd := &cobra.Command{
		Use:         "keygen",
		Short:       "Generate a signing keypair as PEM files",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"config": "skip"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			privPEM, pubPEM, err := generateKeypair(method)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o700); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			privPath := filepath.Join(outDir, privateKeyFile)
			pubPath := filepath.Join(outDir, publicKeyFile)
			if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
				return fmt.Errorf("write private key: %w", err)
			}
			if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
				return fmt.Errorf("write public key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", privPath, pubPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "ed25519", "signing method: ed25519 or rs256")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	return cmd
}

func generateKeypair(method string) (privPEM, pubPEM []byte, err error) {
	var (
		priv crypto.PrivateKey
		pub  crypto.PublicKey
	)
	switch method {
	case "ed25519":
		pub, priv, err = ed25519.GenerateKey(rand.Reader)
	case "rs256":
		var k *rsa.PrivateKey
		k, err = rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if k != nil {
			priv, pub = k, &k.PublicKey
		}
	default:
		return nil, nil, fmt.Errorf("unsupported signing method %q", method)
	}
	if err != nil {
		return nil, nil, err
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, err
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM, nil
}
