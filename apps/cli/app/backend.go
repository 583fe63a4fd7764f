package app

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	accountsrepo "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/repo"
	accountsservice "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	appointmentsrepo "github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/repo"
	appointmentsservice "github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/service"
	eventsrepo "github.com/wilsonllucena/igreja-conciliada/domains/events/be/repo"
	eventsservice "github.com/wilsonllucena/igreja-conciliada/domains/events/be/service"
	leadersrepo "github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/repo"
	leadersservice "github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/service"
	membersrepo "github.com/wilsonllucena/igreja-conciliada/domains/members/be/repo"
	membersservice "github.com/wilsonllucena/igreja-conciliada/domains/members/be/service"
	profilesrepo "github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/repo"
	profilesservice "github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/service"
	"github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/provisioning"
	tenantsrepo "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/repo"
	tenantsservice "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/notify"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/pubsub"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/session"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
)

// Connect builds every service against the database and storage in cfg. The
// returned func releases them in reverse order.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (Services, func() error, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (Services, func() error, error) {
		_ = closeAll()
		return Services{}, nil, err
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:      cfg.DatabaseURL,
		MaxConns:        cfg.DatabaseMaxConns,
		ApplicationName: "igreja-cli",
	})
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() error { persistence.ClosePool(pool); return nil })

	buckets, err := provisioning.NewBuckets(ctx, cfg.storageConfig())
	if err != nil {
		return fail(err)
	}
	closers = append(closers, buckets.Close)

	tenantDB := persistence.NewTenantDB(pool)
	profileStore := persistence.NewProfileStore(tenantDB)
	memberStore := persistence.NewMemberStore(tenantDB)
	leaderStore := persistence.NewLeaderStore(tenantDB)
	appointmentStore := persistence.NewAppointmentStore(tenantDB)
	eventStore := persistence.NewEventStore(tenantDB)

	provider, err := provisioning.NewAuthProvider(ctx, cfg.authConfig(), persistence.NewIdentityStore(tenantDB), logger)
	if err != nil {
		return fail(err)
	}

	updates := pubsub.NewTopic[tenant.Updated]()
	if cfg.NATSURL != "" {
		nc, err := pubsub.Connect(cfg.NATSURL, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() error { nc.Close(); return nil })
		bridge, err := pubsub.NewBridge(nc, cfg.NATSSubject, updates, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, bridge.Close)
	}

	tenants := tenantsservice.New(tenantsrepo.NewPostgresRepository(persistence.NewTenantStore(tenantDB)), tenantsservice.Deps{
		Logos:   buckets.Logos,
		Updates: updates,
		Stats: tenantsrepo.StatsCounter{
			Members:      memberStore,
			Leaders:      leaderStore,
			Events:       eventStore,
			Appointments: appointmentStore,
		},
	})
	accounts := accountsservice.New(provider, accountsrepo.NewPostgresRepository(profileStore), tenants, accountsservice.Options{
		Logger:      logger,
		RedirectURL: cfg.PublicBaseURL,
	})

	return Services{
		Accounts: accounts,
		Members:  membersservice.New(membersrepo.NewPostgresRepository(memberStore)),
		Leaders: leadersservice.New(leadersrepo.NewPostgresRepository(leaderStore), leadersservice.Deps{
			Accounts: accounts,
			Logger:   logger,
		}),
		Appointments: appointmentsservice.New(appointmentsrepo.NewPostgresRepository(appointmentStore)),
		Events: eventsservice.New(eventsrepo.NewPostgresRepository(eventStore, persistence.NewRegistrationStore(tenantDB)), eventsservice.Deps{
			Banners:       buckets.Banners,
			PublicBaseURL: cfg.PublicBaseURL,
			Logger:        logger,
		}),
		Profiles: profilesservice.New(profilesrepo.NewPostgresRepository(profileStore), profilesservice.Deps{Logger: logger}),
		Tenants:  tenants,
		Updates:  updates,
	}, closeAll, nil
}

// NewLogger is the console logger shared by every command.
func NewLogger(level string) (*zap.Logger, error) {
	return platformlogging.NewLogger(platformlogging.Config{
		Component: "cli",
		Level:     level,
		Console:   true,
		Output:    os.Stderr,
	})
}

// DefaultOpener loads the environment, connects the services and restores the
// session persisted in the user's config directory.
func DefaultOpener() Opener {
	return func(ctx context.Context) (*App, error) {
		cfg, err := LoadConfig()
		if err != nil {
			return nil, err
		}
		logger, err := NewLogger(cfg.LogLevel)
		if err != nil {
			return nil, err
		}

		path := cfg.SessionFile
		if path == "" {
			if path, err = session.DefaultTokenPath(); err != nil {
				return nil, err
			}
		}

		svc, closeFn, err := Connect(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a, err := New(ctx, svc, Options{
			Tokens:   session.FileTokenStore{Path: path},
			Notifier: notify.NewConsole(),
			Logger:   logger,
			Close:    closeFn,
		})
		if err != nil {
			_ = closeFn()
			return nil, err
		}
		return a, nil
	}
}
