package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive explorer",
	Long: `Launch the interactive terminal explorer.

Ask questions, see where the router sent them and which sections were
retrieved, open sections in full, and annotate the routing log.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Ask / Open
  Tab      - Cycle retrieval strategy
  n        - New question
  Esc      - Back
  q        - Quit (from the menu)`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// tuiPorts builds the TUI ports from the installed services.
func tuiPorts() (*tui.Ports, error) {
	if retrievalService == nil {
		return nil, errors.New("retrieval service not configured")
	}
	return &tui.Ports{
		Retrieval:  retrievalService,
		Router:     routerService,
		Corpus:     corpusService,
		RoutingLog: routingLogService,
	}, nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	ctx := commandContext(cmd)
	if err := ensureCorpus(ctx); err != nil {
		return err
	}
	startAutoWatch(ctx)

	ports, err := tuiPorts()
	if err != nil {
		return err
	}

	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(ctx)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
