package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

var indexWatch bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the corpus snapshot",
	Long: `Loads the corpus file, embeds new or changed sections and publishes a new
snapshot. Embeddings of unchanged sections are reused from the local database.

With --watch the command keeps running and rebuilds whenever the corpus file
changes. A failed rebuild keeps the previous snapshot live.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "rebuild when the corpus file changes")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if corpusService == nil {
		return errors.New("corpus service not configured")
	}

	ctx := commandContext(cmd)
	if err := corpusService.Rebuild(ctx); err != nil {
		return fmt.Errorf("failed to build corpus: %w", err)
	}
	printStats(cmd, corpusService.Stats())

	if !indexWatch {
		return nil
	}
	if corpusWatcher == nil {
		return errors.New("corpus source cannot be watched")
	}

	cmd.Println("Watching for changes (Ctrl+C to stop)...")
	return corpusWatcher.Watch(ctx, func() {
		if err := corpusService.Rebuild(ctx); err != nil {
			logger.Warn("Rebuild failed, keeping previous snapshot: %v", err)
			return
		}
		printStats(cmd, corpusService.Stats())
	})
}

func printStats(cmd *cobra.Command, stats domain.CorpusStats) {
	cmd.Printf("Snapshot v%d: %d sections (%d newly embedded)\n", stats.Version, stats.Sections, stats.Embedded)
	cmd.Printf("  Model: %s (%d dims)\n", stats.EmbeddingModel, stats.Dimensions)

	categories := make([]string, 0, len(stats.ByCategory))
	for c := range stats.ByCategory {
		categories = append(categories, c.String())
	}
	sort.Strings(categories)
	for _, c := range categories {
		cmd.Printf("  %-10s %d\n", c, stats.ByCategory[domain.Category(c)])
	}
}

// startAutoWatch rebuilds the snapshot in the background on corpus changes
// when the configuration asks for it. It stops with ctx.
func startAutoWatch(ctx context.Context) {
	if !autoWatch || corpusWatcher == nil || corpusService == nil {
		return
	}
	go func() {
		err := corpusWatcher.Watch(ctx, func() {
			if err := corpusService.Rebuild(ctx); err != nil {
				logger.Warn("Rebuild failed, keeping previous snapshot: %v", err)
				return
			}
			logger.Info("Corpus rebuilt: snapshot v%d", corpusService.Stats().Version)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Corpus watcher stopped: %v", err)
		}
	}()
}
