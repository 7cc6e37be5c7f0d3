// Command server runs the health registry: the HTTP API that validates,
// enriches, and publishes bulk mutations, and the persistence consumer that
// applies published batches to storage. Both run in one process sharing the
// same lifecycle.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"healthreg/internal/bulk"
	"healthreg/internal/bulk/consume"
	"healthreg/internal/bulk/enrich"
	"healthreg/internal/bulk/model"
	"healthreg/internal/bulk/store"
	"healthreg/internal/facilitymapping"
	"healthreg/internal/household"
	"healthreg/internal/member"
	"healthreg/internal/platform/config"
	"healthreg/internal/platform/httpserver"
	"healthreg/internal/platform/kafka"
	"healthreg/internal/platform/kafka/consumer"
	"healthreg/internal/platform/kafka/producer"
	"healthreg/internal/platform/logger"
	"healthreg/internal/platform/metrics"
	"healthreg/internal/platform/middleware"
	"healthreg/internal/platform/redis"
	"healthreg/internal/platform/serviceclient"
	"healthreg/internal/stock"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open pgx pool: %w", err)
	}
	defer pool.Close()

	cache, err := redis.New(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if cache == nil {
		log.Info("entity cache disabled")
	}

	pub, err := producer.New(cfg.KafkaBrokers, log)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	defer pub.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	ns := store.StatePrefix{}
	ids := idSource(cfg, log)

	householdStore := store.New(db, cache, pub, ns, household.Mapping(), cfg.CacheTTL, log)
	memberStore := member.NewStore(store.New(db, cache, pub, ns, member.Mapping(), cfg.CacheTTL, log))
	stockStore := store.New(db, cache, pub, ns, stock.Mapping(), cfg.CacheTTL, log)
	mappingStore := facilitymapping.NewStore(store.New(db, cache, pub, ns, facilitymapping.Mapping(), cfg.CacheTTL, log))

	individuals := serviceclient.NewSearchLookup(
		serviceclient.New(cfg.IndividualHost, cfg.LookupTimeout, log),
		"/individual/v1/_search", "Individual", "Individual")
	productVariants := serviceclient.NewSearchLookup(
		serviceclient.New(cfg.ProductHost, cfg.LookupTimeout, log),
		"/product/variant/v1/_search", "ProductVariant", "ProductVariant")
	facilities := serviceclient.NewSearchLookup(
		serviceclient.New(cfg.FacilityHost, cfg.LookupTimeout, log),
		"/facility/v1/_search", "Facility", "Facilities")
	projects := serviceclient.NewSearchLookup(
		serviceclient.New(cfg.ProjectHost, cfg.LookupTimeout, log),
		"/project/v1/_search", "Project", "Project")

	households := household.NewService(householdStore, ids, m, log)
	members := member.NewService(member.Deps{
		Storage:       memberStore,
		Households:    householdStore,
		Individuals:   individuals,
		IDs:           ids,
		LookupTimeout: cfg.LookupTimeout,
		Metrics:       m,
		Logger:        log,
	})
	stocks := stock.NewService(stock.Deps{
		Storage:         stockStore,
		ProductVariants: productVariants,
		Facilities:      facilities,
		IDs:             ids,
		LookupTimeout:   cfg.LookupTimeout,
		Metrics:         m,
		Logger:          log,
	})
	mappings := facilitymapping.NewService(facilitymapping.Deps{
		Storage:       mappingStore,
		Projects:      projects,
		Facilities:    facilities,
		IDs:           ids,
		LookupTimeout: cfg.LookupTimeout,
		Metrics:       m,
		Logger:        log,
	})

	router := consumer.NewRouter(log)
	registerKind(router, bulk.TopicsFor(household.Kind), consume.NewApplier(pool, ns, household.TableSpec(), m, log), log)
	registerKind(router, bulk.TopicsFor(member.Kind), consume.NewApplier(pool, ns, member.TableSpec(), m, log), log)
	registerKind(router, bulk.TopicsFor(stock.Kind), consume.NewApplier(pool, ns, stock.TableSpec(), m, log), log)
	registerKind(router, bulk.TopicsFor(facilitymapping.Kind), consume.NewApplier(pool, ns, facilitymapping.TableSpec(), m, log), log)

	if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, router.Topics()); err != nil {
		return fmt.Errorf("ensure topics: %w", err)
	}
	persister, err := consumer.New(cfg.KafkaBrokers, cfg.ConsumerGroup, router.Topics(), router, log)
	if err != nil {
		return fmt.Errorf("create persistence consumer: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Auth(middleware.NewHMACValidator(cfg.JWTSigningKey), log))
	r.Get("/health", healthHandler(db, cache))
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/household", func(hr chi.Router) {
		hr.Mount("/member", member.NewHandler(members, cfg.DefaultSearchLimit, cfg.MaxSearchLimit, log).Routes())
		hr.Mount("/", household.NewHandler(households, cfg.DefaultSearchLimit, cfg.MaxSearchLimit, log).Routes())
	})
	r.Mount("/stock", stock.NewHandler(stocks, cfg.DefaultSearchLimit, cfg.MaxSearchLimit, log).Routes())
	r.Mount("/project/facility", facilitymapping.NewHandler(mappings, cfg.DefaultSearchLimit, cfg.MaxSearchLimit, log).Routes())

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("persistence consumer running", "group", cfg.ConsumerGroup, "topics", len(router.Topics()))
		err := persister.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func registerKind[T model.Entity](router *consumer.Router, topics bulk.Topics, applier *consume.Applier[T], log *slog.Logger) {
	router.Register(topics.Create, consume.NewHandler(applier, consume.OpCreate, log))
	router.Register(topics.Update, consume.NewHandler(applier, consume.OpUpdate, log))
	router.Register(topics.Delete, consume.NewHandler(applier, consume.OpDelete, log))
}

func idSource(cfg config.Config, log *slog.Logger) enrich.IDSource {
	if cfg.IDSource == "idgen" {
		return enrich.NewSequenceSource(serviceclient.New(cfg.IDGenHost, cfg.LookupTimeout, log), "healthreg.entity.id")
	}
	return enrich.UUIDSource{}
}

func healthHandler(db *sql.DB, cache *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		if cache != nil {
			if err := cache.Health(r.Context()); err != nil {
				http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
