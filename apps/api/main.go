package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wilsonllucena/igreja-conciliada/contracts"
	accountshandler "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/handler"
	accountsrepo "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/repo"
	accountsservice "github.com/wilsonllucena/igreja-conciliada/domains/accounts/be/service"
	appointmentshandler "github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/handler"
	appointmentsrepo "github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/repo"
	appointmentsservice "github.com/wilsonllucena/igreja-conciliada/domains/appointments/be/service"
	discoveryhandler "github.com/wilsonllucena/igreja-conciliada/domains/discovery/be/handler"
	discoveryrepo "github.com/wilsonllucena/igreja-conciliada/domains/discovery/be/repo"
	discoveryservice "github.com/wilsonllucena/igreja-conciliada/domains/discovery/be/service"
	eventshandler "github.com/wilsonllucena/igreja-conciliada/domains/events/be/handler"
	eventsrepo "github.com/wilsonllucena/igreja-conciliada/domains/events/be/repo"
	eventsservice "github.com/wilsonllucena/igreja-conciliada/domains/events/be/service"
	leadershandler "github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/handler"
	leadersrepo "github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/repo"
	leadersservice "github.com/wilsonllucena/igreja-conciliada/domains/leaders/be/service"
	membershandler "github.com/wilsonllucena/igreja-conciliada/domains/members/be/handler"
	membersrepo "github.com/wilsonllucena/igreja-conciliada/domains/members/be/repo"
	membersservice "github.com/wilsonllucena/igreja-conciliada/domains/members/be/service"
	profileshandler "github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/handler"
	profilesrepo "github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/repo"
	profilesservice "github.com/wilsonllucena/igreja-conciliada/domains/profiles/be/service"
	tenantshandler "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/handler"
	"github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/provisioning"
	tenantsrepo "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/repo"
	tenantsservice "github.com/wilsonllucena/igreja-conciliada/domains/tenants/be/service"
	platformauth "github.com/wilsonllucena/igreja-conciliada/platform/go/auth"
	platformlogging "github.com/wilsonllucena/igreja-conciliada/platform/go/logging"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/metrics"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/persistence"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/pubsub"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/telemetry"
	"github.com/wilsonllucena/igreja-conciliada/platform/go/tenant"
	tenantmiddleware "github.com/wilsonllucena/igreja-conciliada/platform/go/tenant/middleware"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("shutdown tracing", zap.Error(err))
		}
	}()

	m := metrics.New(cfg.MetricsPrefix)

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:      cfg.DatabaseURL,
		MaxConns:        cfg.DatabaseMaxConns,
		ApplicationName: "igreja-api",
	})
	if err != nil {
		return err
	}
	defer persistence.ClosePool(pool)

	db := provisioning.NewDBProvisioner(pool, cfg.DatabaseURL, logger)
	if cfg.MigrateOnStart {
		if err := db.Ensure(ctx); err != nil {
			return err
		}
	}

	buckets, err := provisioning.NewBuckets(ctx, provisioning.StorageConfig{
		Backend:       cfg.StorageBackend,
		BannersBucket: cfg.StorageBannersBucket,
		LogosBucket:   cfg.StorageLogosBucket,
		Dir:           cfg.StorageLocalDir,
		PublicBaseURL: cfg.PublicBaseURL,
		GCP:           cfg.GCP,
	})
	if err != nil {
		return err
	}
	defer func() { _ = buckets.Close() }()

	tenantDB := persistence.NewTenantDB(pool)
	identityStore := persistence.NewIdentityStore(tenantDB)
	profileStore := persistence.NewProfileStore(tenantDB)
	memberStore := persistence.NewMemberStore(tenantDB)
	leaderStore := persistence.NewLeaderStore(tenantDB)
	appointmentStore := persistence.NewAppointmentStore(tenantDB)
	eventStore := persistence.NewEventStore(tenantDB)
	registrationStore := persistence.NewRegistrationStore(tenantDB)
	tenantStore := persistence.NewTenantStore(tenantDB)

	provider, err := provisioning.NewAuthProvider(ctx, provisioning.AuthConfig{
		Provider:                 cfg.AuthProvider,
		JWTSecret:                cfg.AuthJWTSecret,
		TokenTTL:                 cfg.AuthTokenTTL,
		RequireEmailConfirmation: cfg.RequireEmailConfirmation,
		FirebaseAPIKey:           cfg.FirebaseAPIKey,
		GCP:                      cfg.GCP,
	}, identityStore, logger)
	if err != nil {
		return err
	}

	updates := pubsub.NewTopic[tenant.Updated]()
	if cfg.NATSURL != "" {
		nc, err := pubsub.Connect(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		bridge, err := pubsub.NewBridge(nc, cfg.NATSSubject, updates, logger)
		if err != nil {
			return err
		}
		defer func() { _ = bridge.Close() }()
	}

	scopeCache, err := tenantmiddleware.NewScopeCache(cfg.ProfileCacheMax, cfg.ProfileCacheTTL)
	if err != nil {
		return err
	}
	defer scopeCache.Close()

	tenantService := tenantsservice.New(tenantsrepo.NewPostgresRepository(tenantStore), tenantsservice.Deps{
		Logos:   buckets.Logos,
		Updates: updates,
		Stats: tenantsrepo.StatsCounter{
			Members:      memberStore,
			Leaders:      leaderStore,
			Events:       eventStore,
			Appointments: appointmentStore,
		},
	})
	profileService := profilesservice.New(profilesrepo.NewPostgresRepository(profileStore), profilesservice.Deps{
		Scopes: scopeCache,
		Logger: logger,
	})
	accountService := accountsservice.New(provider, accountsrepo.NewPostgresRepository(profileStore), tenantService, accountsservice.Options{
		Logger:      logger,
		Metrics:     m,
		RedirectURL: cfg.PublicBaseURL,
	})
	memberService := membersservice.New(membersrepo.NewPostgresRepository(memberStore))
	leaderService := leadersservice.New(leadersrepo.NewPostgresRepository(leaderStore), leadersservice.Deps{
		Accounts: accountService,
		Logger:   logger,
		Metrics:  m,
	})
	appointmentService := appointmentsservice.New(appointmentsrepo.NewPostgresRepository(appointmentStore))
	eventService := eventsservice.New(eventsrepo.NewPostgresRepository(eventStore, registrationStore), eventsservice.Deps{
		Banners:       buckets.Banners,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
		Metrics:       m,
	})
	discoveryService := discoveryservice.New(discoveryrepo.NewPostgresRepository(discoveryrepo.Stores{
		Leaders:       leaderStore,
		Events:        eventStore,
		Registrations: registrationStore,
		Members:       memberStore,
		Appointments:  appointmentStore,
	}), discoveryservice.Deps{Logger: logger, Metrics: m})

	contract, err := contracts.Load()
	if err != nil {
		return err
	}

	var files http.Handler
	if cfg.StorageBackend == provisioning.StorageLocal {
		files = provisioning.FileServer(cfg.StorageLocalDir)
	}

	router := newRouter(routerConfig{
		Logger:       logger,
		Metrics:      m,
		Contract:     contract,
		Authenticate: platformauth.Authenticate(provider),
		Scope: tenantmiddleware.WithTenantScope(profileService, tenantmiddleware.Config{
			Cache:   scopeCache,
			Metrics: m,
		}),
		Ready: func(ctx context.Context) error {
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return db.Check(ctx) })
			g.Go(func() error { return buckets.Check(ctx) })
			return g.Wait()
		},
		Files:          files,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
	}, handlers{
		accounts:     accountshandler.New(accountService, logger),
		members:      membershandler.New(memberService, logger),
		leaders:      leadershandler.New(leaderService, logger),
		appointments: appointmentshandler.New(appointmentService, logger),
		events:       eventshandler.New(eventService, logger),
		profiles:     profileshandler.New(profileService, logger),
		discovery:    discoveryhandler.New(discoveryService, logger),
		tenants:      tenantshandler.New(tenantService, logger),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, "igreja-api"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("api server stopped")
	return nil
}
