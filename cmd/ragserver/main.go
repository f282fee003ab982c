// Command ragserver is the process entrypoint: it loads configuration,
// wires every collaborator (document stores, the engine registry, the
// job worker pool, the batch orchestrator), and serves the HTTP/WS API,
// grounded on the teacher's cmd/agentd/main.go startup sequence (load
// .env, init logger, load config, construct collaborators, listen).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/thirza258/ragreader/internal/batch"
	"github.com/thirza258/ragreader/internal/chunker"
	"github.com/thirza258/ragreader/internal/config"
	"github.com/thirza258/ragreader/internal/documents"
	"github.com/thirza258/ragreader/internal/engine"
	"github.com/thirza258/ragreader/internal/httpapi"
	"github.com/thirza258/ragreader/internal/indexstore"
	"github.com/thirza258/ragreader/internal/job"
	"github.com/thirza258/ragreader/internal/llm/providers"
	"github.com/thirza258/ragreader/internal/observability"
	"github.com/thirza258/ragreader/internal/registry"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.InitLogger(cfg.LogLevel, os.Stderr)
	log := observability.Component(logger, "ragserver")

	ctx := context.Background()

	docStore, jobStore, indexStore, batchStore, cache, closeDB := mustStores(ctx, cfg, log)
	defer closeDB()

	chunk, err := chunker.New(chunker.Fixed, chunker.DefaultConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("build chunker")
	}

	reg, err := registry.New(ctx, cfg.LLM, cfg.VectorStore.Root, indexStore, registry.DefaultVariants(providers.SupportedModels))
	if err != nil {
		log.Fatal().Err(err).Msg("build engine registry")
	}

	jobs := job.NewManager(jobStore, cfg.Jobs.Workers, cfg.Jobs.Workers*4, cfg.Jobs.Timeout)
	defer jobs.Close()

	orchestrator := batch.New(reg, batchStore, cache, cfg.Batch.CacheTTL, docStore, chunk)

	app := &httpapi.App{
		Logger:     log,
		Registry:   reg,
		Jobs:       jobs,
		JobStore:   jobStore,
		Documents:  docStore,
		Batches:    orchestrator,
		BatchStore: batchStore,
		Chunker:    chunk,
		Extractors: map[documents.SourceKind]documents.Extractor{
			documents.SourcePDF:  documents.NewPDFExtractor(),
			documents.SourceURL:  documents.NewURLExtractor(),
			documents.SourceText: documents.NewTextExtractor(),
		},
		MediaRoot:     cfg.VectorStore.Root,
		DefaultMethod: engine.MethodDense,
		DefaultModel:  "gpt-4o-mini",
	}

	mux := httpapi.NewMux(app)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // batch/WS streams hold the connection open
	}

	log.Info().Str("addr", cfg.Server.Addr).Msg("ragserver listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// mustStores builds the document, job, index, and batch stores plus the
// batch cache, backed by Postgres/Redis when configured, falling back to
// in-memory doubles otherwise so the service still runs for local/dev
// use without external dependencies.
func mustStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (documents.Store, job.Store, indexstore.Store, batch.Store, batch.Cache, func()) {
	closeFn := func() {}

	if cfg.Database.DSN == "" {
		log.Warn().Msg("DATABASE_DSN not set; using in-memory stores (data does not survive a restart)")
		return documents.NewMemory(), job.NewMemoryStore(), indexstore.NewMemory(), batch.NewMemoryStore(), batch.NewMemoryCache(), closeFn
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to postgres")
	}

	docStore, err := documents.NewPostgres(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap document store")
	}
	jobStore, err := job.NewPostgres(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap job store")
	}
	idxStore, err := indexstore.NewPostgres(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap index store")
	}
	batchStore, err := batch.NewPostgres(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap batch store")
	}

	var cache batch.Cache
	if cfg.Redis.Addr == "" {
		cache = batch.NewMemoryCache()
	} else {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		cache = batch.NewRedisCache(rdb)
		prevClose := closeFn
		closeFn = func() { prevClose(); _ = rdb.Close() }
	}

	prevClose := closeFn
	closeFn = func() { prevClose(); pool.Close() }

	return docStore, jobStore, idxStore, batchStore, cache, closeFn
}
