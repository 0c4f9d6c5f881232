package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	classifierllm "github.com/custodia-labs/lorekeeper/internal/adapters/driven/classifier/llm"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

func TestPromptStore_ImplementsInterface(t *testing.T) {
	var _ driven.PromptStore = (*PromptStore)(nil)
}

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	store, err := NewPromptStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".lorekeeper", "prompts"), store.Dir())
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptRouteSystem)
	require.NoError(t, err)

	for _, f := range []string{"route_system.txt", "route_classify.txt", "README.md"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "expected file %s to exist", f)
	}
}

func TestPromptStore_Load_Defaults(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	system, err := store.Load(driven.PromptRouteSystem)
	require.NoError(t, err)
	assert.Equal(t, classifierllm.DefaultSystemPrompt, system)

	classify, err := store.Load(driven.PromptRouteClassify)
	require.NoError(t, err)
	assert.Equal(t, classifierllm.DefaultClassifyPrompt, classify)
}

func TestPromptStore_Load_CustomContentIsTrimmed(t *testing.T) {
	dir := t.TempDir()
	custom := "Categories:\n%s\nQ: %s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "route_classify.txt"), []byte("\n  "+custom+"\n\n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptRouteClassify)
	require.NoError(t, err)
	assert.Equal(t, custom, prompt)

	// Existing files are never overwritten by the defaults.
	data, err := os.ReadFile(filepath.Join(dir, "route_classify.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Q: %s")
}

func TestPromptStore_Load_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, _ = store.Load(driven.PromptRouteSystem)
	require.NoError(t, os.Remove(filepath.Join(dir, "route_classify.txt")))

	prompt, err := store.Load(driven.PromptRouteClassify)
	require.NoError(t, err)
	assert.Equal(t, classifierllm.DefaultClassifyPrompt, prompt)
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("does_not_exist")
	assert.Error(t, err)
}

func TestPromptStore_Load_InitFailureUsesDefaults(t *testing.T) {
	store, err := NewPromptStore("/dev/null/prompts")
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptRouteSystem)
	require.NoError(t, err)
	assert.Equal(t, classifierllm.DefaultSystemPrompt, prompt)

	_, err = store.Load("does_not_exist")
	assert.Error(t, err)
}

func TestPromptStore_CacheAndReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	first, err := store.Load(driven.PromptRouteSystem)
	require.NoError(t, err)

	path := filepath.Join(dir, "route_system.txt")
	require.NoError(t, os.WriteFile(path, []byte("Reply with JSON only."), 0600))

	cached, err := store.Load(driven.PromptRouteSystem)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptRouteSystem)
	require.NoError(t, err)
	assert.Equal(t, "Reply with JSON only.", fresh)
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Load(driven.PromptRouteClassify); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
