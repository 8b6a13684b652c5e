// Command devtoken mints identity tokens signed with the configured key directory, for signing
// in to a development instance.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/abelngansop-dot/studio-sub000/internal/infra/config"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/security"
)

type mintOptions struct {
	uid       string
	email     string
	name      string
	roles     []string
	anonymous bool
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &mintOptions{}

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Mint a development identity token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := mint(opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.uid, "uid", "", "subject of the token")
	flags.StringVar(&opts.email, "email", "", "email claim")
	flags.StringVar(&opts.name, "name", "", "display name claim")
	flags.StringSliceVar(&opts.roles, "roles", nil, "roles to grant, e.g. --roles admin")
	flags.BoolVar(&opts.anonymous, "anonymous", false, "mint an anonymous identity")

	return cmd
}

func mint(opts *mintOptions) (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	if strings.TrimSpace(cfg.Auth.KeyDirectory) == "" {
		return "", fmt.Errorf("auth.key_directory must point at a directory holding a signing key")
	}

	keys, err := security.NewDirectoryKeyProvider(cfg.Auth.KeyDirectory, true)
	if err != nil {
		return "", fmt.Errorf("loading keys: %w", err)
	}
	manager := security.NewJWTManager(keys, cfg.Auth.Issuer, cfg.Auth.Audience)

	claims, err := manager.NewIdentityClaims(security.IdentityTokenOptions{
		UID:         opts.uid,
		Email:       opts.email,
		DisplayName: opts.name,
		Roles:       opts.roles,
		Anonymous:   opts.anonymous,
		TTL:         cfg.Auth.TokenTTL,
	})
	if err != nil {
		return "", fmt.Errorf("building claims: %w", err)
	}

	token, err := manager.SignIdentityToken(keys.SigningKeyID(), claims)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}
