package leaders

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wilsonllucena/igreja-conciliada/apps/cli/app"
	leadersservice "github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/workspace"
)

var labels = workspace.Labels{Singular: "líder", Plural: "líderes"}

// Command groups the leader commands of the current church.
func Command(open app.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "leaders",
		Aliases: []string{"lideres"},
		Short:   "Manage church leaders",
	}

	cmd.AddCommand(listCommand(open))
	cmd.AddCommand(createCommand(open))
	cmd.AddCommand(deleteCommand(open))
	cmd.AddCommand(createUserCommand(open))
	return cmd
}

func collection(a *app.App) *workspace.Collection[leadersservice.Leader] {
	return workspace.NewCollection(a.Workspace, labels, a.Leaders.List)
}

func listCommand(open app.Opener) *cobra.Command {
	var available bool

	c := &cobra.Command{
		Use:   "list",
		Short: "List leaders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				list := a.Leaders.List
				if available {
					list = a.Leaders.ListAvailable
				}
				leaders := workspace.NewCollection(a.Workspace, labels, list)
				if err := leaders.Refresh(ctx); err != nil {
					return app.Reported(err)
				}
				return render(cmd, leaders.Items())
			})
		},
	}

	c.Flags().BoolVar(&available, "available", false, "only leaders open for appointments")
	return c
}

func createCommand(open app.Opener) *cobra.Command {
	var (
		input     leadersservice.CreateInput
		available bool
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Add a leader",
		Long:  fmt.Sprintf("Add a leader. --type is one of: %s.", strings.Join(leadersservice.Types, ", ")),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.IsAvailableForAppointments = app.Changed(cmd, "available", available)

			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				created, err := collection(a).Create(ctx, func(ctx context.Context) (leadersservice.Leader, error) {
					return a.Leaders.Create(ctx, input)
				})
				if err != nil {
					return app.Reported(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), created.ID)
				return nil
			})
		},
	}

	c.Flags().StringVar(&input.Name, "name", "", "full name")
	c.Flags().StringVar(&input.Email, "email", "", "email")
	c.Flags().StringVar(&input.Phone, "phone", "", "phone")
	c.Flags().StringVar(&input.Type, "type", "", "leader type")
	c.Flags().StringSliceVar(&input.Permissions, "permission", nil, "capability granted to the leader (repeatable)")
	c.Flags().BoolVar(&available, "available", true, "open for appointments")
	return c
}

func deleteCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a leader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseID(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				return app.Reported(collection(a).Delete(ctx, func(ctx context.Context) error {
					return a.Leaders.Delete(ctx, id)
				}))
			})
		},
	}
}

func createUserCommand(open app.Opener) *cobra.Command {
	var password string

	c := &cobra.Command{
		Use:   "create-user <id>",
		Short: "Give a leader a login with the leader role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseID(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				var linked leadersservice.Leader
				err := collection(a).Do(ctx, "Usuário criado com sucesso", "Erro ao criar usuário",
					func(ctx context.Context) (err error) {
						linked, err = a.Leaders.CreateUserForLeader(ctx, id, password)
						return err
					})
				if err != nil {
					return app.Reported(err)
				}
				if linked.UserID != nil {
					fmt.Fprintln(cmd.OutOrStdout(), *linked.UserID)
				}
				return nil
			})
		},
	}

	c.Flags().StringVar(&password, "password", "", "initial password")
	_ = c.MarkFlagRequired("password")
	return c
}

func render(cmd *cobra.Command, leaders []leadersservice.Leader) error {
	rows := make([][]string, 0, len(leaders))
	for _, l := range leaders {
		user := "-"
		if l.UserID != nil {
			user = l.UserID.String()
		}
		rows = append(rows, []string{
			l.ID.String(),
			l.Name,
			l.Type,
			l.Email,
			l.Phone,
			strconv.FormatBool(l.IsAvailableForAppointments),
			user,
		})
	}
	return app.NewPrinter(cmd).Print(leaders, []string{"ID", "NOME", "TIPO", "EMAIL", "TELEFONE", "ATENDE", "USUÁRIO"}, rows)
}
