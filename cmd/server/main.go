package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"urbacert/internal/artifact"
	"urbacert/internal/catalog"
	"urbacert/internal/enclave"
	"urbacert/internal/intersect"
	"urbacert/internal/jobs"
	"urbacert/internal/maprender"
	"urbacert/internal/notify"
	"urbacert/internal/parcel"
	"urbacert/internal/pipeline"
	"urbacert/internal/platform/config"
	"urbacert/internal/platform/httpserver"
	"urbacert/internal/platform/logger"
	"urbacert/internal/platform/metrics"
	"urbacert/internal/regulation"
	"urbacert/internal/report"
	httptransport "urbacert/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}

	cat, err := loadCatalog(ctx, db, cfg)
	if err != nil {
		log.Error("load catalog", "error", err)
		os.Exit(1)
	}

	store, err := artifact.NewDirStore(cfg.ArtifactDir)
	if err != nil {
		log.Error("init artifact store", "error", err)
		os.Exit(1)
	}

	regulationOpts := []regulation.Option{regulation.WithLogger(log)}
	if cfg.GeminiAPIKey != "" {
		completer, err := regulation.NewGenAICompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Error("init completion client", "error", err)
			os.Exit(1)
		}
		regulationOpts = append(regulationOpts, regulation.WithCompleter(completer, cfg.CompletionTimeout))
	} else {
		log.Warn("GEMINI_API_KEY unset, regulation completion fallback disabled")
	}

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithMetrics(metrics.New()),
		pipeline.WithRecorder(jobs.NewPostgres(db)),
	}
	if cfg.SMTPHost != "" {
		notifier := notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.MailFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
		pipelineOpts = append(pipelineOpts, pipeline.WithNotifier(notifier))
	} else {
		log.Warn("SMTP_HOST unset, completion notifications disabled")
	}

	orchestrator := pipeline.New(
		cat,
		parcel.New(cat, parcel.WithLogger(log)),
		intersect.New(cat, intersect.WithLogger(log)),
		enclave.New(enclave.WithLogger(log)),
		regulation.New(regulation.NewPostgresIndex(db), regulationOpts...),
		report.New(store, report.WithLogger(log)),
		maprender.New(store, maprender.WithLogger(log)),
		pipelineOpts...,
	)

	router := httptransport.NewRouter(httptransport.New(orchestrator, log))
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting urbacert", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// loadCatalog reads the layer mapping and commune index from disk, then pulls
// the declared layers out of PostGIS.
func loadCatalog(ctx context.Context, db *sql.DB, cfg config.Server) (*catalog.Catalog, error) {
	mappingFile, err := os.Open(cfg.MappingPath)
	if err != nil {
		return nil, err
	}
	defer mappingFile.Close()
	descs, err := catalog.ParseMapping(mappingFile)
	if err != nil {
		return nil, err
	}

	communesFile, err := os.Open(cfg.CommunesCSVPath)
	if err != nil {
		return nil, err
	}
	defer communesFile.Close()
	communes, err := catalog.ParseCommunesCSV(communesFile)
	if err != nil {
		return nil, err
	}

	return catalog.NewPostgresLoader(db).Load(ctx, descs, communes, cfg.CadastralLayer)
}
