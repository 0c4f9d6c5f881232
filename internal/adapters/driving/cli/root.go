package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var verbose bool

// Services wired by main. Any of them may be nil when the configuration
// does not allow building it; commands report that instead of panicking.
var (
	settingsService   driving.SettingsService
	corpusService     driving.CorpusService
	retrievalService  driving.RetrievalService
	routerService     driving.RouterService
	evaluationService driving.EvaluationService
	routingLogService driving.RoutingLogService
	corpusWatcher     driven.CorpusWatcher
	autoWatch         bool
	metricsHandler    http.Handler
	loadCases         CaseLoader
)

// CaseLoader reads labelled evaluation cases from a file.
type CaseLoader func(path string) ([]domain.EvaluationCase, error)

// Services groups the ports the CLI drives.
type Services struct {
	Settings   driving.SettingsService
	Corpus     driving.CorpusService
	Retrieval  driving.RetrievalService
	Router     driving.RouterService
	Evaluation driving.EvaluationService
	RoutingLog driving.RoutingLogService

	// Watcher signals corpus file changes for index --watch.
	Watcher driven.CorpusWatcher

	// AutoWatch keeps long-running commands (mcp serve, tui) rebuilding the
	// snapshot when the corpus file changes.
	AutoWatch bool

	// Metrics serves Prometheus metrics next to the MCP HTTP endpoint.
	Metrics http.Handler

	// Cases loads evaluation case files for the eval command.
	Cases CaseLoader
}

// BootstrapFunc builds the services once flags are parsed.
type BootstrapFunc func(ctx context.Context) (*Services, error)

var bootstrap BootstrapFunc

var rootCmd = &cobra.Command{
	Use:   "lorekeeper",
	Short: "Knowledge retrieval for tabletop RPG assistants",
	Long: `Lorekeeper finds the rulebook, character-sheet and session-note sections
that answer a player's question.

It ranks sections with dense embeddings, BM25 keywords or a hybrid of both,
routes questions to the right knowledge category first, and benchmarks
configurations against labelled questions.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: runBootstrap,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline diagnostics")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetServices installs the services directly, bypassing the bootstrap.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	settingsService = s.Settings
	corpusService = s.Corpus
	retrievalService = s.Retrieval
	routerService = s.Router
	evaluationService = s.Evaluation
	routingLogService = s.RoutingLog
	corpusWatcher = s.Watcher
	autoWatch = s.AutoWatch
	metricsHandler = s.Metrics
	loadCases = s.Cases
}

// SetBootstrap registers the function that builds services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil || cmd == versionCmd {
		return nil
	}

	services, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	SetServices(services)
	// Later executions in the same process (tests, TUI) reuse the services.
	bootstrap = nil
	return nil
}

// ensureCorpus builds the snapshot when none is live yet.
func ensureCorpus(ctx context.Context) error {
	if corpusService == nil {
		return errors.New("corpus service not configured")
	}
	if corpusService.Stats().Version > 0 {
		return nil
	}
	if err := corpusService.Rebuild(ctx); err != nil {
		return fmt.Errorf("failed to build corpus: %w", err)
	}
	return nil
}

// commandContext returns the command context, or a background context when
// the command runs without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// parseScope converts --category values into a scope, nil when none are given.
func parseScope(categories []string) *domain.Scope {
	cs := domain.ParseCategories(categories)
	if len(cs) == 0 {
		return nil
	}
	return &domain.Scope{Categories: cs}
}
