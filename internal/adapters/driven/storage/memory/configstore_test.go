package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

func TestConfigStore_InterfaceCompliance(t *testing.T) {
	var store driven.ConfigStore = NewConfigStore()
	assert.Equal(t, ":memory:", store.Path())
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("retrieval.strategy", "hybrid"))
	require.NoError(t, store.Set("retrieval.k", 7))
	require.NoError(t, store.Set("retrieval.rrf_k", int64(60)))
	require.NoError(t, store.Set("retrieval.context_turns", 2.0))
	require.NoError(t, store.Set("routing.fallback_threshold", 0.4))
	require.NoError(t, store.Set("routing.max_scopes", 3))
	require.NoError(t, store.Set("routing.timeout", "250ms"))
	require.NoError(t, store.Set("embedding.timeout", 2*time.Second))
	require.NoError(t, store.Set("corpus.watch", true))
	require.NoError(t, store.Set("routing.categories.rules.keywords", []any{"spell", 3, "grapple"}))

	assert.Equal(t, "hybrid", store.GetString("retrieval.strategy"))
	assert.Equal(t, 7, store.GetInt("retrieval.k"))
	assert.Equal(t, 60, store.GetInt("retrieval.rrf_k"))
	assert.Equal(t, 2, store.GetInt("retrieval.context_turns"))
	assert.InDelta(t, 0.4, store.GetFloat("routing.fallback_threshold"), 1e-9)
	assert.InDelta(t, 3.0, store.GetFloat("routing.max_scopes"), 1e-9)
	assert.Equal(t, 250*time.Millisecond, store.GetDuration("routing.timeout"))
	assert.Equal(t, 2*time.Second, store.GetDuration("embedding.timeout"))
	assert.True(t, store.GetBool("corpus.watch"))
	assert.Equal(t, []string{"spell", "grapple"}, store.GetStringSlice("routing.categories.rules.keywords"))
}

func TestConfigStore_MissingAndWrongTypes(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("retrieval.k", "five"))
	require.NoError(t, store.Set("routing.timeout", "soon"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Empty(t, store.GetString("missing"))
	assert.Zero(t, store.GetInt("retrieval.k"))
	assert.Zero(t, store.GetFloat("retrieval.k"))
	assert.False(t, store.GetBool("retrieval.k"))
	assert.Zero(t, store.GetDuration("routing.timeout"))
	assert.Zero(t, store.GetDuration("missing"))
	assert.Nil(t, store.GetStringSlice("retrieval.k"))
}

func TestConfigStore_Keys(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("routing.entities.Grog", "{pc}"))
	require.NoError(t, store.Set("routing.entities.Fireball", "{spell}"))
	require.NoError(t, store.Set("routing.entitiesx", "sibling"))

	assert.Equal(t, []string{"routing.entities.Fireball", "routing.entities.Grog"}, store.Keys("routing.entities"))
	assert.Len(t, store.Keys(""), 3)
	assert.Empty(t, store.Keys("llm"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("retrieval.k", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("retrieval.k")
			_ = store.Keys("retrieval")
		}()
	}
	wg.Wait()

	_, ok := store.Get("retrieval.k")
	assert.True(t, ok)
}
