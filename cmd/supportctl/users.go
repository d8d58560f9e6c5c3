package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/identity"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account with any role",
	Long: `Create registers credentials and a profile. Unlike self-registration
through the API it may grant the agent or admin role.`,
	RunE: runUsersCreate,
}

var (
	userNameFlag     string
	userEmailFlag    string
	userPasswordFlag string
	userRoleFlag     string
	userOrgFlag      string
)

func init() {
	usersCreateCmd.Flags().StringVar(&userNameFlag, "name", "", "Display name (required)")
	usersCreateCmd.Flags().StringVar(&userEmailFlag, "email", "", "Email address (required)")
	usersCreateCmd.Flags().StringVar(&userPasswordFlag, "password", "", "Initial password (required)")
	usersCreateCmd.Flags().StringVar(&userRoleFlag, "role", string(domain.RoleUser), "Role: user, agent or admin")
	usersCreateCmd.Flags().StringVar(&userOrgFlag, "org", "", "Organisation")
	_ = usersCreateCmd.MarkFlagRequired("name")
	_ = usersCreateCmd.MarkFlagRequired("email")
	_ = usersCreateCmd.MarkFlagRequired("password")

	usersCmd.AddCommand(usersCreateCmd)
	rootCmd.AddCommand(usersCmd)
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	in := identity.RegisterInput{
		Name:     userNameFlag,
		Email:    userEmailFlag,
		Password: userPasswordFlag,
		Role:     domain.Role(userRoleFlag),
	}
	if userOrgFlag != "" {
		in.Org = &userOrgFlag
	}
	tokens := identity.NewTokenManager(s.cfg.Auth.JWTSecret, s.cfg.Auth.AccessTokenTTL())
	svc := identity.NewService(s.rt.Gateway, tokens, s.cfg.Auth.BcryptCost)
	return createUser(cmd.Context(), svc, in, cmd.OutOrStdout())
}

func createUser(ctx context.Context, svc *identity.Service, in identity.RegisterInput, out io.Writer) error {
	res, err := svc.Register(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created %s %s <%s> id=%s\n", res.Profile.Role, res.Profile.Name, res.Profile.Email, res.Profile.UserID)
	return nil
}
