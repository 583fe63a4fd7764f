package tenantcmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wilsonllucena/igreja-conciliada/apps/cli/app"
	tenantsservice "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/session"
)

// Command groups the commands over the signed-in user's church.
func Command(open app.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tenant",
		Aliases: []string{"igreja"},
		Short:   "Show and configure the current church",
	}

	cmd.AddCommand(showCommand(open))
	cmd.AddCommand(statsCommand(open))
	cmd.AddCommand(settingsCommand(open))
	cmd.AddCommand(logoCommand(open))
	return cmd
}

// ErrNoChurch is returned when the signed-in profile has no church.
var ErrNoChurch = errors.New("no church linked to this account")

func showCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the church of the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				if err := a.Workspace.RequireSession(); err != nil {
					return a.Fail(err, "")
				}
				church, ok := a.Workspace.Tenants().Tenant()
				if !ok {
					if err := a.Workspace.Tenants().FetchTenant(ctx); err != nil {
						return a.Fail(err, "Erro ao carregar igreja")
					}
					if church, ok = a.Workspace.Tenants().Tenant(); !ok {
						return ErrNoChurch
					}
				}
				return render(cmd, church)
			})
		},
	}
}

func statsCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the dashboard counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				scoped, err := a.Context(ctx)
				if err != nil {
					return a.Fail(err, "")
				}
				stats, err := a.Tenants.Stats(scoped)
				if err != nil {
					return a.Fail(err, "Erro ao carregar estatísticas")
				}

				doc := map[string]int{
					"active_members":        stats.ActiveMembers,
					"leaders":               stats.Leaders,
					"upcoming_events":       stats.UpcomingEvents,
					"upcoming_appointments": stats.UpcomingAppointments,
				}
				return app.NewPrinter(cmd).Print(doc,
					[]string{"MEMBROS ATIVOS", "LÍDERES", "PRÓXIMOS EVENTOS", "PRÓXIMOS AGENDAMENTOS"},
					[][]string{{
						strconv.Itoa(stats.ActiveMembers),
						strconv.Itoa(stats.Leaders),
						strconv.Itoa(stats.UpcomingEvents),
						strconv.Itoa(stats.UpcomingAppointments),
					}},
				)
			})
		},
	}
}

func settingsCommand(open app.Opener) *cobra.Command {
	var name, address, phone, email, website string

	c := &cobra.Command{
		Use:   "settings",
		Short: "Update the church settings (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			input := tenantsservice.SettingsInput{
				Name:    app.Changed(cmd, "name", name),
				Address: app.Changed(cmd, "address", address),
				Phone:   app.Changed(cmd, "phone", phone),
				Email:   app.Changed(cmd, "email", email),
				Website: app.Changed(cmd, "website", website),
			}

			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				scoped, err := a.Context(ctx)
				if err != nil {
					return a.Fail(err, "")
				}
				updated, err := a.Tenants.UpdateSettings(scoped, input)
				if err != nil {
					return a.Fail(err, "Erro ao salvar configurações")
				}
				a.Succeed("Configurações salvas com sucesso")
				return render(cmd, app.ToSessionTenant(updated))
			})
		},
	}

	c.Flags().StringVar(&name, "name", "", "church name")
	c.Flags().StringVar(&address, "address", "", "address")
	c.Flags().StringVar(&phone, "phone", "", "phone")
	c.Flags().StringVar(&email, "email", "", "contact email")
	c.Flags().StringVar(&website, "website", "", "website")
	return c
}

func logoCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "logo <image>",
		Short: "Upload the church logo (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, contentType, err := app.OpenImage(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				scoped, err := a.Context(ctx)
				if err != nil {
					return a.Fail(err, "")
				}
				updated, err := a.Tenants.UploadLogo(scoped, filepath.Base(args[0]), contentType, f)
				if err != nil {
					return a.Fail(err, "Erro ao enviar logo")
				}
				a.Succeed("Logo atualizado com sucesso")
				_, err = fmt.Fprintln(cmd.OutOrStdout(), app.Deref(updated.Logo))
				return err
			})
		},
	}
}

type churchDoc struct {
	ID      string  `yaml:"id"`
	Name    string  `yaml:"name"`
	Slug    string  `yaml:"slug"`
	Logo    *string `yaml:"logo,omitempty"`
	Address *string `yaml:"address,omitempty"`
	Phone   *string `yaml:"phone,omitempty"`
	Email   *string `yaml:"email,omitempty"`
	Website *string `yaml:"website,omitempty"`
}

func render(cmd *cobra.Command, t session.Tenant) error {
	doc := churchDoc{
		ID:      t.ID.String(),
		Name:    t.Name,
		Slug:    t.Slug,
		Logo:    t.Logo,
		Address: t.Address,
		Phone:   t.Phone,
		Email:   t.Email,
		Website: t.Website,
	}
	return app.NewPrinter(cmd).Print(doc,
		[]string{"ID", "NOME", "SLUG", "ENDEREÇO", "TELEFONE", "EMAIL", "SITE", "LOGO"},
		[][]string{{doc.ID, doc.Name, doc.Slug, app.Deref(t.Address), app.Deref(t.Phone), app.Deref(t.Email), app.Deref(t.Website), app.Deref(t.Logo)}},
	)
}
