package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/facilityops/facility-service/internal/auth"
	"github.com/facilityops/facility-service/internal/domain"
)

// TokenCmd mints a bearer token for development and smoke tests.
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with AUTH_JWT_SECRET",
		Long: `Token mints a development bearer token for the given subject.

Usage:
  facilityctl token --sub tenant-1 --role tenant --org org-1 --property prop-a
  facilityctl token --sub staff-1 --role staff --org org-1 --property prop-a --property prop-b`,
		RunE: runToken,
	}
	cmd.Flags().String("sub", "", "Subject (user or staff ID)")
	cmd.Flags().String("role", "", "Role: tenant, staff, property_admin, org_admin")
	cmd.Flags().String("org", "", "Organization ID")
	cmd.Flags().StringSlice("property", nil, "Property ID in scope (repeatable)")
	cmd.Flags().Int("ttl", 0, "Lifetime in minutes (defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	cmd.Flags().Bool("quiet", false, "Print only the token")
	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	sub, _ := cmd.Flags().GetString("sub")
	roleName, _ := cmd.Flags().GetString("role")
	org, _ := cmd.Flags().GetString("org")
	properties, _ := cmd.Flags().GetStringSlice("property")
	ttl, _ := cmd.Flags().GetInt("ttl")
	quiet, _ := cmd.Flags().GetBool("quiet")

	if strings.TrimSpace(sub) == "" {
		return errors.New("--sub is required")
	}
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return err
	}

	env, err := openEnvironment(cmd.Context(), false)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = env.cfg.Auth.AccessTokenTTLMinutes
	}
	tokens := auth.NewTokenManager(env.cfg.Auth.JWTSecret, ttl)
	token, expiresAt, err := tokens.GenerateToken(domain.Actor{
		ID:             strings.TrimSpace(sub),
		Role:           role,
		OrganizationID: strings.TrimSpace(org),
		PropertyIDs:    properties,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if quiet {
		fmt.Fprintln(out, token)
		return nil
	}
	fmt.Fprintf(out, "%s %s (%s) expires %s\n", color.New(color.FgGreen).Sprint("token for"), sub, role, expiresAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(out, token)
	return nil
}
