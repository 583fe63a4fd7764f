package members

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wilsonllucena/igreja-conciliada/apps/cli/app"
	membersservice "github.com/wilsonllucena/igreja-conciliada/domains/members/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/workspace"
)

var labels = workspace.Labels{Singular: "membro", Plural: "membros"}

// Command groups the member commands of the current church.
func Command(open app.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "members",
		Aliases: []string{"membros"},
		Short:   "Manage church members",
	}

	cmd.AddCommand(listCommand(open))
	cmd.AddCommand(createCommand(open))
	cmd.AddCommand(importCommand(open))
	cmd.AddCommand(deleteCommand(open))
	return cmd
}

func collection(a *app.App) *workspace.Collection[membersservice.Member] {
	return workspace.NewCollection(a.Workspace, labels, a.Members.List)
}

func listCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				members := collection(a)
				if err := members.Refresh(ctx); err != nil {
					return app.Reported(err)
				}
				return render(cmd, members.Items())
			})
		},
	}
}

func createCommand(open app.Opener) *cobra.Command {
	var (
		input                              membersservice.CreateInput
		address, birthDate, status, joined string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Add a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Address = app.Changed(cmd, "address", address)
			input.DateOfBirth = app.Changed(cmd, "birth-date", birthDate)
			input.Status = app.Changed(cmd, "status", status)
			input.JoinedAt = app.Changed(cmd, "joined-at", joined)

			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				members := collection(a)
				created, err := members.Create(ctx, func(ctx context.Context) (membersservice.Member, error) {
					return a.Members.Create(ctx, input)
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
	c.Flags().StringSliceVar(&input.Groups, "group", nil, "group (repeatable)")
	c.Flags().StringVar(&address, "address", "", "address")
	c.Flags().StringVar(&birthDate, "birth-date", "", "date of birth (YYYY-MM-DD)")
	c.Flags().StringVar(&status, "status", "", "active or inactive")
	c.Flags().StringVar(&joined, "joined-at", "", "membership date (YYYY-MM-DD)")
	return c
}

func importCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create many members at once from a YAML list",
		Long:  "Create many members at once. The file is a YAML list of members with the same keys as the API (name, email, phone, groups, ...). Nothing is created when any row is invalid.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := readImport(args[0])
			if err != nil {
				return err
			}

			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				members := collection(a)
				var created []membersservice.Member
				err := members.Do(ctx,
					fmt.Sprintf("%d membros importados com sucesso", len(inputs)),
					"Erro ao importar membros",
					func(ctx context.Context) (err error) {
						created, err = a.Members.CreateBulk(ctx, inputs)
						return err
					})
				if err != nil {
					return app.Reported(err)
				}
				return render(cmd, created)
			})
		},
	}
}

// importRow mirrors CreateInput with yaml keys.
type importRow struct {
	Name        string   `yaml:"name"`
	Email       string   `yaml:"email"`
	Phone       string   `yaml:"phone"`
	Address     *string  `yaml:"address"`
	DateOfBirth *string  `yaml:"date_of_birth"`
	Groups      []string `yaml:"groups"`
	Status      *string  `yaml:"status"`
	JoinedAt    *string  `yaml:"joined_at"`
}

func readImport(path string) ([]membersservice.CreateInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var rows []importRow
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s has no members", path)
	}

	out := make([]membersservice.CreateInput, 0, len(rows))
	for _, r := range rows {
		out = append(out, membersservice.CreateInput(r))
	}
	return out, nil
}

func deleteCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseID(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				return app.Reported(collection(a).Delete(ctx, func(ctx context.Context) error {
					return a.Members.Delete(ctx, id)
				}))
			})
		},
	}
}

func render(cmd *cobra.Command, members []membersservice.Member) error {
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{
			m.ID.String(),
			m.Name,
			m.Email,
			m.Phone,
			string(m.Status),
			strings.Join(m.Groups, ", "),
			m.JoinedAt.Format("2006-01-02"),
		})
	}
	return app.NewPrinter(cmd).Print(members, []string{"ID", "NOME", "EMAIL", "TELEFONE", "STATUS", "GRUPOS", "DESDE"}, rows)
}
