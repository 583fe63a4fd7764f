package root

import (
	"github.com/wilsonllucena/igreja-conciliada/apps/cli/app"
	"github.com/wilsonllucena/igreja-conciliada/apps/cli/cmd/appointments"
	"github.com/wilsonllucena/igreja-conciliada/apps/cli/cmd/auth"
	"github.com/wilsonllucena/igreja-conciliada/apps/cli/cmd/events"
	"github.com/wilsonllucena/igreja-conciliada/apps/cli/cmd/leaders"
	"github.com/wilsonllucena/igreja-conciliada/apps/cli/cmd/members"
	"github.com/wilsonllucena/igreja-conciliada/apps/cli/cmd/migrate"
	tenantcmd "github.com/wilsonllucena/igreja-conciliada/apps/cli/cmd/tenant"
	"github.com/wilsonllucena/igreja-conciliada/apps/cli/cmd/users"
)

func init() {
	open := app.DefaultOpener()

	Root().AddCommand(auth.Command(open))
	Root().AddCommand(members.Command(open))
	Root().AddCommand(leaders.Command(open))
	Root().AddCommand(appointments.Command(open))
	Root().AddCommand(events.Command(open))
	Root().AddCommand(users.Command(open))
	Root().AddCommand(tenantcmd.Command(open))
	Root().AddCommand(migrate.Command(databaseURL))
}

func databaseURL() (string, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return "", err
	}
	return cfg.DatabaseURL, nil
}
