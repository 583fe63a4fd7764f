package users

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wilsonllucena/igreja-conciliada/apps/cli/app"
	accountsservice "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	profilesservice "github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/workspace"
)

var labels = workspace.Labels{Singular: "usuário", Plural: "usuários"}

// Command groups the admin commands over the church's users.
func Command(open app.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"usuarios"},
		Short:   "Manage the users of the church (admin only)",
	}

	cmd.AddCommand(listCommand(open))
	cmd.AddCommand(createCommand(open))
	cmd.AddCommand(roleCommand(open))
	cmd.AddCommand(deleteCommand(open))
	return cmd
}

func collection(a *app.App) *workspace.Collection[profilesservice.Profile] {
	return workspace.NewCollection(a.Workspace, labels, a.Profiles.List)
}

func listCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				users := collection(a)
				if err := users.Refresh(ctx); err != nil {
					return app.Reported(err)
				}

				items := users.Items()
				rows := make([][]string, 0, len(items))
				for _, p := range items {
					rows = append(rows, []string{p.ID.String(), p.Name, p.Email, app.Deref(p.Phone), string(p.Role)})
				}
				return app.NewPrinter(cmd).Print(items, []string{"ID", "NOME", "EMAIL", "TELEFONE", "PAPEL"}, rows)
			})
		},
	}
}

func createCommand(open app.Opener) *cobra.Command {
	var (
		input accountsservice.CreateUserInput
		phone string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a login in the current church",
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Phone = app.Changed(cmd, "phone", phone)

			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				var created accountsservice.Account
				err := collection(a).Do(ctx, "Usuário criado com sucesso", "Erro ao criar usuário",
					func(ctx context.Context) (err error) {
						created, err = a.Accounts.CreateUser(ctx, input)
						return err
					})
				if err != nil {
					return app.Reported(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), created.Profile.ID)
				return nil
			})
		},
	}

	c.Flags().StringVar(&input.Name, "name", "", "full name")
	c.Flags().StringVar(&input.Email, "email", "", "email")
	c.Flags().StringVar(&input.Password, "password", "", "initial password")
	c.Flags().StringVar(&input.Role, "role", "member", "admin, leader or member")
	c.Flags().StringVar(&phone, "phone", "", "phone")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	return c
}

func roleCommand(open app.Opener) *cobra.Command {
	var role string

	c := &cobra.Command{
		Use:   "role <id>",
		Short: "Change the role of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseID(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				_, err := collection(a).Update(ctx, func(ctx context.Context) (profilesservice.Profile, error) {
					return a.Profiles.Update(ctx, id, profilesservice.UpdateInput{Role: &role})
				})
				return app.Reported(err)
			})
		},
	}

	c.Flags().StringVar(&role, "role", "", "admin, leader or member")
	_ = c.MarkFlagRequired("role")
	return c
}

func deleteCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseID(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				return app.Reported(collection(a).Delete(ctx, func(ctx context.Context) error {
					return a.Profiles.Delete(ctx, id)
				}))
			})
		},
	}
}
