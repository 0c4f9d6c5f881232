package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

type fakeCorpus struct {
	stats      domain.CorpusStats
	rebuildErr error
	rebuilds   int
}

func (f *fakeCorpus) Build(context.Context, []domain.Section) error { return nil }

func (f *fakeCorpus) Rebuild(context.Context) error {
	f.rebuilds++
	if f.rebuildErr != nil {
		return f.rebuildErr
	}
	f.stats.Version++
	return nil
}

func (f *fakeCorpus) Get(string) (*domain.Section, error) { return nil, domain.ErrNotFound }

func (f *fakeCorpus) Filter(...domain.Category) []domain.Section { return nil }

func (f *fakeCorpus) Stats() domain.CorpusStats { return f.stats }

type fakeRetrieval struct {
	result *domain.RetrievalResult
	err    error
	query  domain.Query
	opts   domain.RetrieveOptions
}

func (f *fakeRetrieval) Retrieve(_ context.Context, q domain.Query, opts domain.RetrieveOptions) (*domain.RetrievalResult, error) {
	f.query = q
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRouter struct {
	decision domain.RoutingDecision
	query    domain.Query
}

func (f *fakeRouter) Route(_ context.Context, q domain.Query) domain.RoutingDecision {
	f.query = q
	return f.decision
}

func (f *fakeRouter) Categories() []domain.Category {
	return []domain.Category{domain.CategoryRules, domain.CategoryCharacter, domain.CategorySession}
}

type fakeEvaluation struct {
	configs []domain.EvaluationConfig
	err     error
}

func (f *fakeEvaluation) Evaluate(_ context.Context, cases []domain.EvaluationCase, cfg domain.EvaluationConfig) (*domain.Report, error) {
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	if cfg.Label == "" {
		cfg.Label = "section-" + cfg.Strategy.String()
	}
	return &domain.Report{
		Config:    cfg,
		Cases:     len(cases),
		MRR:       0.734,
		RecallAtK: 0.715,
		ByCategory: []domain.CategoryReport{
			{Category: domain.QuestionCalculateValues, Cases: 1, MRR: 0.107, RecallAtK: 0.2},
			{Category: domain.QuestionRuleMechanics, Cases: 1, MRR: 0.9, RecallAtK: 1},
		},
		Results: []domain.CaseResult{{CaseID: "c1", FirstRank: 2, Recall: 1, Retrieved: []string{"rules.a", "rules.b"}}},
	}, nil
}

type fakeRoutingLog struct {
	records   []domain.RoutingRecord
	limit     int
	annotated map[string][]domain.Category
}

func (f *fakeRoutingLog) List(_ context.Context, limit int) ([]domain.RoutingRecord, error) {
	f.limit = limit
	return f.records, nil
}

func (f *fakeRoutingLog) Annotate(_ context.Context, id string, correct []domain.Category) error {
	for _, r := range f.records {
		if r.ID == id {
			if f.annotated == nil {
				f.annotated = make(map[string][]domain.Category)
			}
			f.annotated[id] = correct
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeWatcher struct {
	changes int
}

func (f *fakeWatcher) Watch(_ context.Context, onChange func()) error {
	for range f.changes {
		onChange()
	}
	return nil
}

// resetFlags restores every command flag to its default between executions.
func resetFlags() {
	verbose = false
	indexWatch = false
	retrieveK, retrieveStrategy, retrieveCategories, retrieveHistory, retrieveJSON = 0, "", nil, nil, false
	routeJSON = false
	evalCases, evalK, evalStrategies, evalRouter, evalLabel, evalJSON, evalShowCases = "cases.yaml", 5, nil, false, "", false, false
	routingLogLimit, routingLogJSON = 20, false
}

// execute runs the root command with the given services and input.
func execute(t *testing.T, s *Services, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	SetServices(s)
	t.Cleanup(func() {
		SetServices(nil)
		resetFlags()
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestSetServices_Nil(t *testing.T) {
	SetServices(&Services{Corpus: &fakeCorpus{}})
	SetServices(nil)

	assert.Nil(t, corpusService)
	assert.Nil(t, retrievalService)
	assert.Nil(t, loadCases)
}

func TestSetVersion(t *testing.T) {
	original := version
	t.Cleanup(func() { version = original })

	SetVersion("")
	assert.Equal(t, original, version)

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}

func TestBootstrap_RunsOnce(t *testing.T) {
	calls := 0
	corpus := &fakeCorpus{stats: domain.CorpusStats{Version: 1, Sections: 2}}
	SetBootstrap(func(context.Context) (*Services, error) {
		calls++
		return &Services{Corpus: corpus}, nil
	})
	t.Cleanup(func() { SetBootstrap(nil); SetServices(nil) })

	require.NoError(t, runBootstrap(indexCmd, nil))
	require.NoError(t, runBootstrap(indexCmd, nil))

	assert.Equal(t, 1, calls)
	assert.Same(t, corpus, corpusService)
}

func TestBootstrap_SkippedForVersion(t *testing.T) {
	SetBootstrap(func(context.Context) (*Services, error) {
		return nil, errors.New("should not run")
	})
	t.Cleanup(func() { SetBootstrap(nil) })

	assert.NoError(t, runBootstrap(versionCmd, nil))
}

func TestBootstrap_Error(t *testing.T) {
	SetBootstrap(func(context.Context) (*Services, error) {
		return nil, errors.New("config unreadable")
	})
	t.Cleanup(func() { SetBootstrap(nil) })

	assert.EqualError(t, runBootstrap(indexCmd, nil), "config unreadable")
}

func TestEnsureCorpus(t *testing.T) {
	t.Cleanup(func() { SetServices(nil) })

	SetServices(nil)
	assert.EqualError(t, ensureCorpus(context.Background()), "corpus service not configured")

	built := &fakeCorpus{stats: domain.CorpusStats{Version: 3}}
	SetServices(&Services{Corpus: built})
	require.NoError(t, ensureCorpus(context.Background()))
	assert.Zero(t, built.rebuilds)

	empty := &fakeCorpus{}
	SetServices(&Services{Corpus: empty})
	require.NoError(t, ensureCorpus(context.Background()))
	assert.Equal(t, 1, empty.rebuilds)

	failing := &fakeCorpus{rebuildErr: domain.ErrCorpusIntegrity}
	SetServices(&Services{Corpus: failing})
	assert.ErrorIs(t, ensureCorpus(context.Background()), domain.ErrCorpusIntegrity)
}

func TestParseScope(t *testing.T) {
	assert.Nil(t, parseScope(nil))
	assert.Nil(t, parseScope([]string{" ", ""}))

	scope := parseScope([]string{"Rules", "character"})
	require.NotNil(t, scope)
	assert.Equal(t, []domain.Category{domain.CategoryRules, domain.CategoryCharacter}, scope.Categories)
	assert.False(t, scope.All)
}

func TestIsTerminal_Buffer(t *testing.T) {
	assert.False(t, isTerminal(new(bytes.Buffer)))
}

func TestVersionCmd(t *testing.T) {
	original := version
	version = "test-version-1.0.0"
	t.Cleanup(func() { version = original })

	out, err := execute(t, nil, "", "version")

	require.NoError(t, err)
	assert.Contains(t, out, "lorekeeper version test-version-1.0.0")
}
