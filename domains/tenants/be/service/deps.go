package service

import (
	"context"
	"time"

	"github.com/wilsonllucena/igreja-conciliada/platform/go/pubsub"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/storage"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// StatsCounter computes the dashboard counters for one tenant.
type StatsCounter interface {
	CountActiveMembers(ctx context.Context, scope tenant.Scope) (int, error)
	CountLeaders(ctx context.Context, scope tenant.Scope) (int, error)
	CountUpcomingEvents(ctx context.Context, scope tenant.Scope, now time.Time) (int, error)
	CountUpcomingAppointments(ctx context.Context, scope tenant.Scope, now time.Time) (int, error)
}

// Deps groups the collaborators beyond the repository. Logos and Updates are
// required for UploadLogo; Stats for Stats.
type Deps struct {
	Logos   storage.Bucket
	Updates *pubsub.Topic[tenant.Updated]
	Stats   StatsCounter
	Now     func() time.Time
}
