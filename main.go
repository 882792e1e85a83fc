package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	appcatalog "github.com/sproutworks/nursery/internal/app/catalog"
	apporder "github.com/sproutworks/nursery/internal/app/order"
	"github.com/sproutworks/nursery/internal/config"
	"github.com/sproutworks/nursery/internal/domain/catalog"
	"github.com/sproutworks/nursery/internal/domain/identity"
	"github.com/sproutworks/nursery/internal/events"
	"github.com/sproutworks/nursery/internal/ledger"
	"github.com/sproutworks/nursery/internal/observability"
	"github.com/sproutworks/nursery/internal/observability/oteltrace"
	"github.com/sproutworks/nursery/internal/observability/prometrics"
	"github.com/sproutworks/nursery/internal/observability/telemetry"
	"github.com/sproutworks/nursery/internal/observability/zaplogger"
	"github.com/sproutworks/nursery/internal/pkg/id"
	"github.com/sproutworks/nursery/internal/store"
	httptransport "github.com/sproutworks/nursery/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)

	registry := prometrics.New(cfg.ServiceName)
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests:   registry.Counter(observability.MUsecaseRequests, "Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests:      registry.Counter(observability.MHTTPRequests, "Total number of HTTP requests.", "method", "route", "status"),
		observability.MStockReservations: registry.Counter(observability.MStockReservations, "Total number of stock reservation attempts.", "outcome"),
		observability.MOrdersPlaced:      registry.Counter(observability.MOrdersPlaced, "Total number of orders placed."),
		observability.MEventsPublished:   registry.Counter(observability.MEventsPublished, "Total number of domain events published.", "event"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration:     registry.Histogram(observability.MUsecaseDuration, "Duration of use case execution in seconds.", nil, "use_case"),
		observability.MHTTPRequestDuration: registry.Histogram(observability.MHTTPRequestDuration, "Duration of HTTP requests in seconds.", nil, "method", "route"),
	}
	tel := telemetry.New(oteltrace.New(cfg.ServiceName), logger, counters, histograms)

	st := store.New(cfg.StockLockWait)
	led := ledger.New(tel)
	ids := id.NewUUIDGenerator()

	bus := events.NewBus(tel)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())
	events.NewAuditor(tel).Register(bus)

	orderService := apporder.NewService(st, led, ids, bus, tel)
	catalogService := appcatalog.NewService(st, led, ids, bus, tel)

	if cfg.SeedDemoData {
		seedDemoData(st, ids, logger)
	}

	handler := httptransport.NewHandler(orderService, catalogService, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", observability.F("error", err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		logger.Info("http_server_stopped")
	}
}

// seedDemoData loads a small catalog and user registry so a fresh dev
// instance is usable without an external seeding step.
func seedDemoData(st *store.Store, ids id.Generator, logger observability.Logger) {
	ctx := context.Background()

	users := []*identity.User{
		{ID: "admin-1", Name: "Admin", Role: identity.RoleAdmin},
		{ID: "staff-1", Name: "Staff", Role: identity.RoleStaff},
		{ID: "customer-1", Name: "Demo Customer", Role: identity.RoleCustomer},
	}
	for _, u := range users {
		_ = st.PutUser(ctx, u)
	}

	seeds := []struct {
		name  string
		typ   catalog.Type
		batch string
		qty   int
		price int64
	}{
		{"Tomato Seeds", catalog.TypeSeed, "B-2026-01", 200, 349},
		{"Oak Sapling", catalog.TypeSapling, "B-2026-02", 25, 1999},
		{"Monstera", catalog.TypePlant, "B-2026-03", 40, 2450},
	}
	for _, s := range seeds {
		p, err := catalog.NewProduct(ids.NewID(), s.name, s.typ, s.batch, s.qty, s.price, "")
		if err != nil {
			continue
		}
		_ = st.PutProduct(ctx, p)
	}

	logger.Info("demo_data_seeded",
		observability.F("users", len(users)),
		observability.F("products", len(seeds)),
	)
}
