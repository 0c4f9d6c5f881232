package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

func testRoutingSettings() domain.RoutingSettings {
	return domain.RoutingSettings{
		FallbackThreshold:  0.5,
		MinScopeConfidence: 0.25,
		MaxScopes:          2,
		Timeout:            time.Second,
		Categories:         domain.DefaultCategoryProfiles(),
	}
}

func newTestRouter(c *fakeClassifier) *RouterService {
	r := NewRouterService(c, testRoutingSettings())
	r.now = func() time.Time { return testTime }
	return r
}

func TestRouterService_Categories(t *testing.T) {
	r := newTestRouter(&fakeClassifier{})
	assert.Equal(t, []domain.Category{domain.CategoryCharacter, domain.CategoryRules, domain.CategorySession}, r.Categories())
}

func TestRouterService_Route(t *testing.T) {
	tests := []struct {
		name       string
		scores     []domain.ScopeScore
		wantScopes []domain.Category
		wantFull   bool
	}{
		{
			name: "confident single scope",
			scores: []domain.ScopeScore{
				{Category: domain.CategoryCharacter, Confidence: 0.9},
				{Category: domain.CategoryRules, Confidence: 0.1},
			},
			wantScopes: []domain.Category{domain.CategoryCharacter},
		},
		{
			name: "two scopes above minimum",
			scores: []domain.ScopeScore{
				{Category: domain.CategoryRules, Confidence: 0.7},
				{Category: domain.CategoryCharacter, Confidence: 0.6},
				{Category: domain.CategorySession, Confidence: 0.5},
			},
			wantScopes: []domain.Category{domain.CategoryRules, domain.CategoryCharacter},
		},
		{
			name: "low confidence adds full corpus",
			scores: []domain.ScopeScore{
				{Category: domain.CategorySession, Confidence: 0.3},
				{Category: domain.CategoryRules, Confidence: 0.2},
			},
			wantScopes: []domain.Category{domain.CategorySession},
			wantFull:   true,
		},
		{
			name:       "all zero routes to full corpus only",
			scores:     nil,
			wantScopes: []domain.Category{},
			wantFull:   true,
		},
		{
			name: "out of range scores are clamped",
			scores: []domain.ScopeScore{
				{Category: domain.CategoryRules, Confidence: 3},
				{Category: domain.CategorySession, Confidence: -1},
			},
			wantScopes: []domain.Category{domain.CategoryRules},
		},
		{
			name: "unknown categories are ignored",
			scores: []domain.ScopeScore{
				{Category: "spells", Confidence: 1},
				{Category: domain.CategoryRules, Confidence: 0.8},
			},
			wantScopes: []domain.Category{domain.CategoryRules},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeClassifier{scores: tt.scores})
			d := r.Route(context.Background(), domain.Query{ID: "q", RawText: "anything"})

			assert.Equal(t, "q", d.QueryID)
			assert.Equal(t, tt.wantScopes, d.Scopes)
			assert.Equal(t, tt.wantFull, d.IncludesFullCorpus)
			assert.False(t, d.Degraded)
			assert.Equal(t, "fake", d.Classifier)
			assert.Equal(t, 0.5, d.Threshold)
			assert.Equal(t, testTime, d.DecidedAt)
			// Every category is scored and scores are sorted.
			require.Len(t, d.Scores, 3)
			for i := 1; i < len(d.Scores); i++ {
				assert.GreaterOrEqual(t, d.Scores[i-1].Confidence, d.Scores[i].Confidence)
			}
			for _, s := range d.Scores {
				assert.GreaterOrEqual(t, s.Confidence, 0.0)
				assert.LessOrEqual(t, s.Confidence, 1.0)
			}
		})
	}
}

func TestRouterService_MaxScopes(t *testing.T) {
	settings := testRoutingSettings()
	settings.MaxScopes = 1
	r := NewRouterService(&fakeClassifier{scores: []domain.ScopeScore{
		{Category: domain.CategoryRules, Confidence: 0.8},
		{Category: domain.CategoryCharacter, Confidence: 0.8},
	}}, settings)

	d := r.Route(context.Background(), domain.Query{RawText: "x"})
	// Ties break by category name.
	assert.Equal(t, []domain.Category{domain.CategoryCharacter}, d.Scopes)
	assert.NotEmpty(t, d.QueryID)
}

func TestRouterService_ClassifierFailure(t *testing.T) {
	logger.ResetDegradedCount()
	metrics := &countingMetrics{}
	log := &fakeRoutingLog{}
	r := newTestRouter(&fakeClassifier{err: errors.New("connection refused")})
	r.SetMetrics(metrics)
	r.SetRoutingLog(log)

	d := r.Route(context.Background(), domain.Query{ID: "q", RawText: "what is my AC"})

	assert.True(t, d.Degraded)
	assert.True(t, d.IncludesFullCorpus)
	assert.Empty(t, d.Scopes)
	assert.Contains(t, d.DegradedReason, "connection refused")
	assert.Equal(t, int64(1), logger.DegradedCount())
	assert.Equal(t, 1, metrics.routings)
	require.Len(t, log.records, 1)
	assert.True(t, log.records[0].Decision.Degraded)
}

func TestRouterService_ClassifierTimeout(t *testing.T) {
	settings := testRoutingSettings()
	settings.Timeout = 10 * time.Millisecond
	r := NewRouterService(&fakeClassifier{delay: time.Second}, settings)

	start := time.Now()
	d := r.Route(context.Background(), domain.Query{RawText: "x"})

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, d.Degraded)
	assert.True(t, d.IncludesFullCorpus)
}

func TestRouterService_NoClassifier(t *testing.T) {
	r := NewRouterService(nil, testRoutingSettings())
	d := r.Route(context.Background(), domain.Query{RawText: "x"})
	assert.True(t, d.IncludesFullCorpus)
	assert.False(t, d.Degraded)
}

func TestRouterService_RecordsNormalizedQuery(t *testing.T) {
	settings := testRoutingSettings()
	settings.Entities = map[string]string{"Fireball": "{spell}", "Thora Ironhand": "{pc}"}
	c := &fakeClassifier{scores: []domain.ScopeScore{{Category: domain.CategoryRules, Confidence: 0.9}}}
	log := &fakeRoutingLog{}
	r := NewRouterService(c, settings)
	r.SetRoutingLog(log)

	r.Route(context.Background(), domain.Query{RawText: "Can thora ironhand cast fireball?"})

	require.Len(t, log.records, 1)
	assert.Equal(t, "Can {pc} cast {spell}?", log.records[0].QueryText)
	assert.NotEmpty(t, log.records[0].ID)
	assert.Equal(t, []string{"Can {pc} cast {spell}?"}, c.seen)
}

func TestRouterService_LogFailureIsIgnored(t *testing.T) {
	r := newTestRouter(&fakeClassifier{scores: []domain.ScopeScore{{Category: domain.CategoryRules, Confidence: 0.9}}})
	r.SetRoutingLog(&fakeRoutingLog{err: errors.New("db locked")})

	d := r.Route(context.Background(), domain.Query{RawText: "x"})
	assert.Equal(t, []domain.Category{domain.CategoryRules}, d.Scopes)
}

func TestQueryNormalizer(t *testing.T) {
	n := NewQueryNormalizer(map[string]string{
		"Fire":        "{element}",
		"Fire Bolt":   "{spell}",
		"Old Bren":    "{npc}",
		"":            "{blank}",
		"Unused Name": "",
	})

	assert.Equal(t, 3, n.Len())
	assert.Equal(t, "does {spell} beat {element}?", n.Normalize("does fire bolt beat FIRE?"))
	assert.Equal(t, "ask {npc} about it", n.Normalize("ask Old Bren about it"))
	// Whole words only.
	assert.Equal(t, "firebolt", n.Normalize("firebolt"))

	var nilNormalizer *QueryNormalizer
	assert.Equal(t, "unchanged", nilNormalizer.Normalize("unchanged"))
	assert.Equal(t, 0, nilNormalizer.Len())
}

func TestRoutingLogService(t *testing.T) {
	store := &fakeRoutingLog{}
	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, store.Record(context.Background(), &domain.RoutingRecord{ID: id}))
	}
	svc := NewRoutingLogService(store)

	records, err := svc.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r3", records[0].ID)

	_, err = svc.List(context.Background(), -1)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	require.NoError(t, svc.Annotate(context.Background(), "r2", []domain.Category{domain.CategoryRules}))
	assert.Equal(t, []domain.Category{domain.CategoryRules}, store.records[1].CorrectScopes)

	err = svc.Annotate(context.Background(), "missing", []domain.Category{domain.CategoryRules})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	assert.True(t, errors.Is(svc.Annotate(context.Background(), "r1", nil), domain.ErrInvalidInput))
	assert.True(t, errors.Is(svc.Annotate(context.Background(), "", []domain.Category{"x"}), domain.ErrInvalidInput))
}
