// Command lorekeeper retrieves rulebook, character-sheet and session-note
// sections for tabletop RPG assistants.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/ai"
	configfile "github.com/custodia-labs/lorekeeper/internal/adapters/driven/config/file"
	corpusfile "github.com/custodia-labs/lorekeeper/internal/adapters/driven/corpus/file"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/events"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/lexical/bm25"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/cli"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/services"
	"github.com/custodia-labs/lorekeeper/internal/logger"
	"github.com/custodia-labs/lorekeeper/internal/postprocessors"
	"github.com/custodia-labs/lorekeeper/internal/postprocessors/chunker"
)

// version is set at build time via ldflags.
var version = "dev"

// configDirEnv overrides the configuration directory (default ~/.lorekeeper).
const configDirEnv = "LOREKEEPER_HOME"

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is normal; API keys may come from the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	cli.SetVersion(version)
	cli.SetBootstrap(func(ctx context.Context) (*cli.Services, error) {
		s, closeFn, err := bootstrap(ctx)
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
		return s, err
	})

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// bootstrap wires the services from the configuration directory.
// The returned function releases databases and provider connections.
func bootstrap(_ context.Context) (*cli.Services, func(), error) {
	configDir := os.Getenv(configDirEnv)
	if configDir == "" {
		dir, err := configfile.DefaultDir()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}
		configDir = dir
	}

	var configStore driven.ConfigStore
	fileStore, err := configfile.NewConfigStore(configDir)
	if err != nil {
		logger.Warn("Failed to open config in %s, using defaults (changes will not be saved): %v", configDir, err)
		configStore = memory.NewConfigStore()
	} else {
		configStore = fileStore
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := settingsService.Validate(); err != nil {
		logger.Warn("Configuration issue: %v", err)
	}

	prompts, err := configfile.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open prompt store: %w", err)
	}

	aiServices, err := ai.Initialise(settings, prompts)
	if err != nil {
		return nil, nil, err
	}

	dataDir := settings.Corpus.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(configDir, "data")
	}
	var (
		sections   driven.SectionStore
		routingLog driven.RoutingLogStore
	)
	closeAll := aiServices.Close
	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		logger.Warn("Failed to open database, keeping snapshots and the routing log in memory: %v", err)
		sections = memory.NewSectionStore()
		routingLog = memory.NewRoutingLogStore()
	} else {
		sections = store.SectionStore()
		routingLog = store.RoutingLogStore()
		closeAll = func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close database: %v", err)
			}
			aiServices.Close()
		}
	}

	embedder := aiServices.EmbeddingService
	if embedder == nil {
		// Lexical-only configurations still build snapshots with the built-in model.
		defaults := domain.DefaultAppSettings().Embedding
		embedder, err = ai.CreateEmbeddingService(&defaults)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
	}

	recorder := prometheus.New()
	source := corpusfile.NewSource(settings.Corpus.Path)

	corpus := services.NewCorpusService(embedder, bm25.NewBuilder(bm25.ConfigFromSettings(settings.Lexical)))
	corpus.SetSource(source)
	corpus.SetSectionStore(sections)
	corpus.SetMetrics(recorder)

	if settings.Corpus.Granularity == domain.GranularitySentence {
		registry := postprocessors.NewRegistry()
		postprocessors.RegisterDefaults(registry)
		pipeline, err := registry.BuildPipeline([]string{chunker.Name}, map[string]map[string]any{
			chunker.Name: {
				"sentences": settings.Corpus.SentencesPerChunk,
				"overlap":   settings.Corpus.SentenceOverlap,
			},
		})
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to build section pipeline: %w", err)
		}
		corpus.SetPipeline(pipeline)
	}

	router := services.NewRouterService(aiServices.Classifier, settings.Routing)
	router.SetRoutingLog(routingLog)
	router.SetMetrics(recorder)

	retrieval := services.NewRetrievalService(corpus, aiServices.EmbeddingService, router, settings.Retrieval)
	retrieval.SetEventSink(events.LogSink{})
	retrieval.SetMetrics(recorder)
	retrieval.SetEmbedTimeout(settings.Embedding.Timeout)

	s := &cli.Services{
		Settings:   settingsService,
		Corpus:     corpus,
		Retrieval:  retrieval,
		Router:     router,
		Evaluation: services.NewEvaluationService(retrieval),
		RoutingLog: services.NewRoutingLogService(routingLog),
		Metrics:    recorder.Handler(),
		Watcher:    source,
		AutoWatch:  settings.Corpus.Watch,
		Cases:      corpusfile.LoadCases,
	}
	return s, closeAll, nil
}
