package events

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wilsonllucena/igreja-conciliada/apps/cli/app"
	eventsservice "github.com/wilsonllucena/igreja-conciliada/domains/events/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/workspace"
)

var labels = workspace.Labels{Singular: "evento", Plural: "eventos"}

// Command groups the event commands of the current church.
func Command(open app.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"eventos"},
		Short:   "Manage church events",
	}

	cmd.AddCommand(listCommand(open))
	cmd.AddCommand(createCommand(open))
	cmd.AddCommand(deleteCommand(open))
	cmd.AddCommand(bannerCommand(open))
	cmd.AddCommand(linkCommand(open))
	cmd.AddCommand(registrationsCommand(open))
	return cmd
}

func collection(a *app.App) *workspace.Collection[eventsservice.Event] {
	return workspace.NewCollection(a.Workspace, labels, a.Events.List)
}

func listCommand(open app.Opener) *cobra.Command {
	var upcoming int

	c := &cobra.Command{
		Use:   "list",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				list := a.Events.List
				if upcoming > 0 {
					list = func(ctx context.Context) ([]eventsservice.Event, error) {
						return a.Events.ListUpcoming(ctx, upcoming)
					}
				}
				events := workspace.NewCollection(a.Workspace, labels, list)
				if err := events.Refresh(ctx); err != nil {
					return app.Reported(err)
				}
				return render(cmd, events.Items())
			})
		},
	}

	c.Flags().IntVar(&upcoming, "upcoming", 0, "only the next N events")
	return c
}

func createCommand(open app.Opener) *cobra.Command {
	var (
		input         eventsservice.CreateInput
		maxAttendees  int
		price, banner string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create an event, optionally with a banner image",
		RunE: func(cmd *cobra.Command, args []string) error {
			input.MaxAttendees = app.Changed(cmd, "max-attendees", maxAttendees)
			input.Price = app.Changed(cmd, "price", price)

			var upload *eventsservice.BannerUpload
			if banner != "" {
				f, contentType, err := app.OpenImage(banner)
				if err != nil {
					return err
				}
				defer f.Close()
				upload = &eventsservice.BannerUpload{Filename: filepath.Base(banner), ContentType: contentType, Body: f}
			}

			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				created, err := collection(a).Create(ctx, func(ctx context.Context) (eventsservice.Event, error) {
					return a.Events.Create(ctx, input, upload)
				})
				if err != nil {
					return app.Reported(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), created.ID)
				return nil
			})
		},
	}

	c.Flags().StringVar(&input.Title, "title", "", "title")
	c.Flags().StringVar(&input.Description, "description", "", "description (markdown)")
	c.Flags().StringVar(&input.ScheduledAt, "at", "", "start time (RFC 3339)")
	c.Flags().StringVar(&input.Location, "location", "", "location")
	c.Flags().StringSliceVar(&input.Speakers, "speaker", nil, "speaker (repeatable)")
	c.Flags().IntVar(&maxAttendees, "max-attendees", 0, "attendance limit")
	c.Flags().BoolVar(&input.RequiresPayment, "requires-payment", false, "charge for registration")
	c.Flags().StringVar(&price, "price", "", "price, e.g. 25.00")
	c.Flags().BoolVar(&input.IsPublic, "public", false, "list on the public page")
	c.Flags().StringVar(&banner, "banner", "", "banner image file")
	return c
}

func deleteCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseID(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				return app.Reported(collection(a).Delete(ctx, func(ctx context.Context) error {
					return a.Events.Delete(ctx, id)
				}))
			})
		},
	}
}

func bannerCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "banner <id> <image>",
		Short: "Replace the banner of an event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseID(args[0])
			if err != nil {
				return err
			}
			f, contentType, err := app.OpenImage(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				updated, err := collection(a).Update(ctx, func(ctx context.Context) (eventsservice.Event, error) {
					return a.Events.ReplaceBanner(ctx, id, eventsservice.BannerUpload{
						Filename:    filepath.Base(args[1]),
						ContentType: contentType,
						Body:        f,
					})
				})
				if err != nil {
					return app.Reported(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), app.Deref(updated.Banner))
				return nil
			})
		},
	}
}

func linkCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "link <id>",
		Short: "Print the public registration link of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseID(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), a.Events.PublicLink(id))
				return err
			})
		},
	}
}

func registrationsCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "registrations <id>",
		Short: "List the attendees registered for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseID(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				registrations := workspace.NewCollection(a.Workspace,
					workspace.Labels{Singular: "inscrição", Plural: "inscrições"},
					func(ctx context.Context) ([]eventsservice.Registration, error) {
						return a.Events.Registrations(ctx, id)
					})
				if err := registrations.Refresh(ctx); err != nil {
					return app.Reported(err)
				}

				items := registrations.Items()
				rows := make([][]string, 0, len(items))
				for _, r := range items {
					rows = append(rows, []string{
						r.AttendeeName,
						r.AttendeeEmail,
						r.AttendeePhone,
						app.Deref(r.PaymentStatus),
						r.RegisteredAt.Local().Format("2006-01-02 15:04"),
					})
				}
				return app.NewPrinter(cmd).Print(items, []string{"NOME", "EMAIL", "TELEFONE", "PAGAMENTO", "INSCRITO EM"}, rows)
			})
		},
	}
}

func render(cmd *cobra.Command, events []eventsservice.Event) error {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		capacity := "-"
		if e.MaxAttendees != nil {
			capacity = strconv.Itoa(*e.MaxAttendees)
		}
		price := "grátis"
		if e.RequiresPayment && e.Price.Valid {
			price = "R$ " + e.Price.Decimal.StringFixed(2)
		}
		rows = append(rows, []string{
			e.ID.String(),
			e.Title,
			e.ScheduledAt.Local().Format("2006-01-02 15:04"),
			e.Location,
			fmt.Sprintf("%d/%s", e.CurrentAttendees, capacity),
			price,
			strconv.FormatBool(e.IsPublic),
		})
	}
	return app.NewPrinter(cmd).Print(events, []string{"ID", "TÍTULO", "INÍCIO", "LOCAL", "INSCRITOS", "PREÇO", "PÚBLICO"}, rows)
}
