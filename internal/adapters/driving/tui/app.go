package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/views/menu"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/views/routinglog"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/views/section"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	menuView       *menu.View
	searchView     *search.View
	sectionView    *section.View
	routingLogView *routinglog.View

	currentView messages.ViewType
	err         error

	width  int
	height int
	ready  bool
}

var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	var categories []domain.Category
	if ports.Router != nil {
		categories = ports.Router.Categories()
	}

	app := &App{
		ports:          ports,
		ctx:            context.Background(),
		styles:         s,
		keymap:         km,
		menuView:       menu.NewView(s),
		searchView:     search.NewView(s, km, ports.Retrieval),
		sectionView:    section.NewView(s),
		routingLogView: routinglog.NewView(s, ports.RoutingLog, categories),
		currentView:    messages.ViewMenu,
	}
	app.menuView.SetStats(app.corpusSummary())
	return app, nil
}

// WithContext sets the context used for service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	a.routingLogView.WithContext(ctx)
	return a
}

// corpusSummary describes the live snapshot for the menu, empty without a corpus port.
func (a *App) corpusSummary() string {
	if a.ports.Corpus == nil {
		return ""
	}
	stats := a.ports.Corpus.Stats()
	if stats.Version == 0 {
		return "No corpus snapshot built"
	}
	parts := make([]string, 0, len(stats.ByCategory))
	for _, c := range stats.Categories() {
		parts = append(parts, fmt.Sprintf("%s %d", c, stats.ByCategory[c]))
	}
	return fmt.Sprintf("%d sections (%s) · %s", stats.Sections, strings.Join(parts, ", "), stats.EmbeddingModel)
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("lorekeeper"),
	)
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message handler
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.currentView {
		case messages.ViewMenu:
			a.menuView, cmd = a.menuView.Update(msg)
		case messages.ViewSearch:
			a.searchView, cmd = a.searchView.Update(msg)
		case messages.ViewSection:
			a.sectionView, cmd = a.sectionView.Update(msg)
		case messages.ViewRoutingLog:
			a.routingLogView, cmd = a.routingLogView.Update(msg)
		case messages.ViewHelp:
			if msg.Type == tea.KeyEsc {
				a.currentView = messages.ViewMenu
			}
		}
		return a, cmd

	case messages.ViewChanged:
		from := a.currentView
		a.currentView = msg.View
		switch msg.View {
		case messages.ViewSearch:
			// Returning from a section keeps the conversation.
			if from == messages.ViewSection {
				return a, nil
			}
			a.searchView.Reset()
			return a, a.searchView.Init()
		case messages.ViewRoutingLog:
			return a, a.routingLogView.Init()
		case messages.ViewMenu:
			a.menuView.SetStats(a.corpusSummary())
		case messages.ViewSection, messages.ViewHelp:
		}
		return a, nil

	case messages.RetrievalCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = msg.Err
		return a, cmd

	case messages.HitSelected:
		a.sectionView.SetHit(msg.Hit)
		a.currentView = messages.ViewSection
		return a, nil

	case messages.RoutingLogLoaded, messages.RecordAnnotated:
		a.routingLogView, cmd = a.routingLogView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		if a.currentView == messages.ViewSearch {
			a.searchView, cmd = a.searchView.Update(msg)
		}
		return a, cmd
	}

	if a.currentView == messages.ViewSearch {
		a.searchView, cmd = a.searchView.Update(msg)
	}
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewSearch:
		return a.searchView.View()
	case messages.ViewSection:
		return a.sectionView.View()
	case messages.ViewRoutingLog:
		return a.routingLogView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.menuView.View()
	}
}

// viewHelp renders the keybindings from the keymap.
func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")
	for _, group := range a.keymap.FullHelp() {
		for _, kb := range group {
			h := kb.Help()
			b.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
		}
		b.WriteString("\n")
	}
	b.WriteString(a.styles.Help.Render("Questions in one session are sent with the earlier ones as context."))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Help.Render("[esc] back to menu"))
	return b.String()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// Query returns the current question text.
func (a *App) Query() string {
	return a.searchView.Query()
}

// Hits returns the ranked sections of the last retrieval.
func (a *App) Hits() []domain.Hit {
	return a.searchView.Hits()
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been sized.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.menuView.SetDimensions(width, height)
	a.searchView.SetDimensions(width, height)
	a.sectionView.SetDimensions(width, height)
	a.routingLogView.SetDimensions(width, height)
}
