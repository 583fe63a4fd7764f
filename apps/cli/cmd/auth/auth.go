package auth

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wilsonllucena/igreja-conciliada/apps/cli/app"
)

// Command groups the session commands.
func Command(open app.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign up and manage the local session",
	}

	cmd.AddCommand(signInCommand(open))
	cmd.AddCommand(signUpCommand(open))
	cmd.AddCommand(signOutCommand(open))
	cmd.AddCommand(whoAmICommand(open))
	cmd.AddCommand(passwordCommand(open))
	return cmd
}

func signInCommand(open app.Opener) *cobra.Command {
	var email, password string

	c := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and keep the session for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				if err := a.Workspace.Session().SignIn(ctx, email, password); err != nil {
					return a.Fail(err, "Erro ao entrar")
				}
				a.Succeed("Login realizado com sucesso")
				return printWhoAmI(cmd, a)
			})
		},
	}

	c.Flags().StringVar(&email, "email", "", "account email")
	c.Flags().StringVar(&password, "password", "", "account password")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	return c
}

func signUpCommand(open app.Opener) *cobra.Command {
	var email, password, name, organization string

	c := &cobra.Command{
		Use:   "signup",
		Short: "Register an account, optionally founding a church",
		Long:  "Register an account. With --organization the church is created and the new user becomes its admin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				if err := a.Workspace.Session().SignUp(ctx, email, password, name, organization); err != nil {
					return a.Fail(err, "Erro ao criar conta")
				}
				a.Succeed("Conta criada com sucesso. Faça login para continuar.")
				return nil
			})
		},
	}

	c.Flags().StringVar(&email, "email", "", "account email")
	c.Flags().StringVar(&password, "password", "", "account password")
	c.Flags().StringVar(&name, "name", "", "full name")
	c.Flags().StringVar(&organization, "organization", "", "church name (creates the church)")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	_ = c.MarkFlagRequired("name")
	return c
}

func signOutCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Revoke the session and forget it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				if err := a.Workspace.Session().SignOut(ctx); err != nil {
					// local state is cleared regardless
					a.Logger.Warn("sign out", zap.Error(err))
				}
				a.Succeed("Sessão encerrada")
				return nil
			})
		},
	}
}

func whoAmICommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and church",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				if err := a.Workspace.RequireSession(); err != nil {
					return a.Fail(err, "")
				}
				return printWhoAmI(cmd, a)
			})
		},
	}
}

func passwordCommand(open app.Opener) *cobra.Command {
	var password string

	c := &cobra.Command{
		Use:   "password",
		Short: "Change the password of the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				scoped, err := a.Context(ctx)
				if err != nil {
					return a.Fail(err, "")
				}
				if err := a.Accounts.UpdatePassword(scoped, password); err != nil {
					return a.Fail(err, "Erro ao alterar senha")
				}
				a.Succeed("Senha alterada com sucesso")
				return nil
			})
		},
	}

	c.Flags().StringVar(&password, "new", "", "new password")
	_ = c.MarkFlagRequired("new")
	return c
}

type whoAmI struct {
	ID     string `yaml:"id"`
	Email  string `yaml:"email"`
	Name   string `yaml:"name,omitempty"`
	Role   string `yaml:"role,omitempty"`
	Church string `yaml:"church,omitempty"`
}

func printWhoAmI(cmd *cobra.Command, a *app.App) error {
	identity, _ := a.Workspace.Session().Identity()
	out := whoAmI{ID: identity.ID.String(), Email: identity.Email, Name: identity.Name}
	if profile, ok := a.Workspace.Session().Profile(); ok {
		out.Name = profile.Name
		out.Role = string(profile.Role)
	}
	if church, ok := a.Workspace.Tenants().Tenant(); ok {
		out.Church = church.Name
	}

	return app.NewPrinter(cmd).Print(out,
		[]string{"ID", "EMAIL", "NOME", "PAPEL", "IGREJA"},
		[][]string{{out.ID, out.Email, out.Name, orDash(out.Role), orDash(out.Church)}},
	)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
