package appointments

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wilsonllucena/igreja-conciliada/apps/cli/app"
	appointmentsservice "github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/service"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/workspace"
)

var labels = workspace.Labels{Singular: "agendamento", Plural: "agendamentos"}

// Command groups the appointment commands of the current church.
func Command(open app.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"agenda"},
		Short:   "Manage pastoral appointments",
	}

	cmd.AddCommand(listCommand(open))
	cmd.AddCommand(createCommand(open))
	cmd.AddCommand(completeCommand(open))
	cmd.AddCommand(statusCommand(open))
	cmd.AddCommand(deleteCommand(open))
	return cmd
}

func collection(a *app.App) *workspace.Collection[appointmentsservice.Appointment] {
	return workspace.NewCollection(a.Workspace, labels, a.Appointments.List)
}

func listCommand(open app.Opener) *cobra.Command {
	var from, to, leader string

	c := &cobra.Command{
		Use:   "list",
		Short: "List appointments, optionally within a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := lister(cmd, from, to, leader)
			if err != nil {
				return err
			}
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				appointments := workspace.NewCollection(a.Workspace, labels, list(a))
				if err := appointments.Refresh(ctx); err != nil {
					return app.Reported(err)
				}
				return render(cmd, appointments.Items())
			})
		},
	}

	c.Flags().StringVar(&from, "from", "", "range start (YYYY-MM-DD)")
	c.Flags().StringVar(&to, "to", "", "range end, inclusive (YYYY-MM-DD)")
	c.Flags().StringVar(&leader, "leader", "", "only this leader's appointments (requires --from and --to)")
	return c
}

type listFunc = func(ctx context.Context) ([]appointmentsservice.Appointment, error)

// lister picks List or ListByDateRange from the flags.
func lister(cmd *cobra.Command, from, to, leader string) (func(a *app.App) listFunc, error) {
	if !cmd.Flags().Changed("from") && !cmd.Flags().Changed("to") {
		if leader != "" {
			return nil, fmt.Errorf("--leader requires --from and --to")
		}
		return func(a *app.App) listFunc { return a.Appointments.List }, nil
	}

	start, err := time.ParseInLocation(time.DateOnly, from, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --from %q", from)
	}
	end, err := time.ParseInLocation(time.DateOnly, to, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --to %q", to)
	}
	r := appointmentsservice.Range{From: start, To: end.Add(24*time.Hour - time.Nanosecond)}
	if leader != "" {
		id, err := app.ParseID(leader)
		if err != nil {
			return nil, err
		}
		r.LeaderID = &id
	}

	return func(a *app.App) listFunc {
		return func(ctx context.Context) ([]appointmentsservice.Appointment, error) {
			return a.Appointments.ListByDateRange(ctx, r)
		}
	}, nil
}

func createCommand(open app.Opener) *cobra.Command {
	var (
		input       appointmentsservice.CreateInput
		description string
		duration    int
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Schedule an appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Description = app.Changed(cmd, "description", description)
			input.Duration = app.Changed(cmd, "duration", duration)

			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				created, err := collection(a).Create(ctx, func(ctx context.Context) (appointmentsservice.Appointment, error) {
					return a.Appointments.Create(ctx, input)
				})
				if err != nil {
					return app.Reported(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), created.ID)
				return nil
			})
		},
	}

	c.Flags().StringVar(&input.LeaderID, "leader", "", "leader id")
	c.Flags().StringVar(&input.MemberID, "member", "", "member id")
	c.Flags().StringVar(&input.Title, "title", "", "title")
	c.Flags().StringVar(&description, "description", "", "description")
	c.Flags().StringVar(&input.ScheduledAt, "at", "", "start time (RFC 3339)")
	c.Flags().IntVar(&duration, "duration", 60, "duration in minutes")
	return c
}

func completeCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark an appointment as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseID(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				_, err := collection(a).Update(ctx, func(ctx context.Context) (appointmentsservice.Appointment, error) {
					return a.Appointments.Complete(ctx, id)
				})
				return app.Reported(err)
			})
		},
	}
}

func statusCommand(open app.Opener) *cobra.Command {
	var status string

	c := &cobra.Command{
		Use:   "status <id>...",
		Short: "Set the status of several appointments at once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := app.ParseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				var n int
				err := collection(a).Do(ctx, "Status atualizado com sucesso", "Erro ao atualizar status",
					func(ctx context.Context) (err error) {
						n, err = a.Appointments.UpdateStatus(ctx, ids, status)
						return err
					})
				if err != nil {
					return app.Reported(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}

	c.Flags().StringVar(&status, "status", "", "scheduled, completed or cancelled")
	_ = c.MarkFlagRequired("status")
	return c
}

func deleteCommand(open app.Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.ParseID(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd, open, func(ctx context.Context, a *app.App) error {
				return app.Reported(collection(a).Delete(ctx, func(ctx context.Context) error {
					return a.Appointments.Delete(ctx, id)
				}))
			})
		},
	}
}

func render(cmd *cobra.Command, appointments []appointmentsservice.Appointment) error {
	rows := make([][]string, 0, len(appointments))
	for _, ap := range appointments {
		rows = append(rows, []string{
			ap.ID.String(),
			ap.Title,
			ap.ScheduledAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(ap.Duration) + " min",
			string(ap.Status),
			ap.LeaderID.String(),
			ap.MemberID.String(),
		})
	}
	return app.NewPrinter(cmd).Print(appointments, []string{"ID", "TÍTULO", "INÍCIO", "DURAÇÃO", "STATUS", "LÍDER", "MEMBRO"}, rows)
}
