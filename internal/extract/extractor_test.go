package extract

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipebox/internal/recipe"
)

// fakeModel answers by payload: image bytes or text are looked up in replies.
type fakeModel struct {
	replies map[string]string
	delays  map[string]time.Duration
	err     error

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu      sync.Mutex
	prompts []string
}

func (m *fakeModel) answer(ctx context.Context, prompt, key string) (string, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if d := m.delays[key]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.err != nil {
		return "", m.err
	}
	return m.replies[key], nil
}

func (m *fakeModel) GenerateFromImage(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	return m.answer(ctx, prompt, string(data))
}

func (m *fakeModel) GenerateFromText(ctx context.Context, prompt, text string) (string, error) {
	return m.answer(ctx, prompt, text)
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache { return &memCache{entries: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *memCache) Set(_ context.Context, key string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = payload
	return nil
}

const (
	pancakePage = "```json\n" + `{"name":"Pancakes","time_estimation":10,"servings":2,"ingredients":[{"name":"Flour","amount":"1 cup"}],"instructions":[{"instruction":"Mix dry ingredients"}]}` + "\n```"
	wafflePage  = `{"name":"Waffles","time_estimation":15,"servings":4,"health_score":70,"ingredients":[{"name":"flour","amount":"1.5 cups"},{"name":"Egg","amount":"1"}],"instructions":[{"instruction":"Cook in waffle iron"}]}`
)

func TestExtractor_ExtractImageStripsFence(t *testing.T) {
	model := &fakeModel{replies: map[string]string{"page1": pancakePage}}
	e := NewExtractor(model, nil, 0, nil)

	c, err := e.Extract(context.Background(), ImageInput("image/jpeg", []byte("page1")))
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", c.Name)
	assert.Equal(t, []string{ImagePrompt}, model.prompts)
}

func TestExtractor_ExtractTextDoesNotStripFence(t *testing.T) {
	model := &fakeModel{replies: map[string]string{"spoken recipe": pancakePage}}
	e := NewExtractor(model, nil, 0, nil)

	_, err := e.Extract(context.Background(), TextInput("spoken recipe"))
	assert.ErrorIs(t, err, ErrMalformedJSON)
	assert.Equal(t, []string{TextPrompt}, model.prompts)
}

func TestExtractor_EmptyResponse(t *testing.T) {
	model := &fakeModel{replies: map[string]string{"blank": "  \n"}}
	e := NewExtractor(model, nil, 0, nil)

	_, err := e.Extract(context.Background(), ImageInput("image/png", []byte("blank")))
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestExtractor_EmptyInput(t *testing.T) {
	model := &fakeModel{}
	e := NewExtractor(model, nil, 0, nil)

	_, err := e.Extract(context.Background(), ImageInput("image/png", nil))
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = e.Extract(context.Background(), TextInput("   "))
	assert.ErrorIs(t, err, ErrEmptyInput)

	assert.Zero(t, model.calls.Load())
}

func TestExtractor_ModelError(t *testing.T) {
	upstream := errors.New("quota exceeded")
	e := NewExtractor(&fakeModel{err: upstream}, nil, 0, nil)

	_, err := e.Extract(context.Background(), TextInput("anything"))
	assert.ErrorIs(t, err, upstream)
}

func TestExtractor_ExtractAllMergesInInputOrder(t *testing.T) {
	model := &fakeModel{
		replies: map[string]string{"page1": pancakePage, "page2": wafflePage},
		// the first page finishes last
		delays: map[string]time.Duration{"page1": 30 * time.Millisecond},
	}
	e := NewExtractor(model, nil, 0, nil)

	merged, err := e.ExtractAll(context.Background(), []Input{
		ImageInput("image/jpeg", []byte("page1")),
		ImageInput("image/jpeg", []byte("page2")),
	})
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", merged.Name)
	assert.Equal(t, 25, merged.TimeEstimation)
	assert.Equal(t, intPtr(4), merged.Servings)
	assert.Equal(t, intPtr(70), merged.HealthScore)
	assert.Equal(t, []recipe.Ingredient{
		{Name: "Flour", Amount: strPtr("1 cup, 1.5 cups")},
		{Name: "Egg", Amount: strPtr("1")},
	}, merged.Ingredients)
	assert.Equal(t, []recipe.Instruction{
		{Instruction: "Mix dry ingredients"},
		{Instruction: "Cook in waffle iron"},
	}, merged.Instructions)
}

func TestExtractor_ExtractAllSingleInputIsUnmerged(t *testing.T) {
	model := &fakeModel{replies: map[string]string{"page2": wafflePage}}
	e := NewExtractor(model, nil, 0, nil)

	merged, err := e.ExtractAll(context.Background(), []Input{ImageInput("image/png", []byte("page2"))})
	require.NoError(t, err)

	single, err := e.Extract(context.Background(), ImageInput("image/png", []byte("page2")))
	require.NoError(t, err)
	assert.Equal(t, single, merged)
}

func TestExtractor_ExtractAllEmptyBatch(t *testing.T) {
	model := &fakeModel{}
	e := NewExtractor(model, nil, 0, nil)

	_, err := e.ExtractAll(context.Background(), nil)
	assert.ErrorIs(t, err, recipe.ErrEmptyBatch)
	assert.Zero(t, model.calls.Load())
}

func TestExtractor_ExtractAllOneFailureFailsBatch(t *testing.T) {
	model := &fakeModel{replies: map[string]string{
		"page1": pancakePage,
		"page2": `{"time_estimation": 5}`,
		"page3": wafflePage,
	}}
	e := NewExtractor(model, nil, 0, nil)

	merged, err := e.ExtractAll(context.Background(), []Input{
		ImageInput("image/jpeg", []byte("page1")),
		ImageInput("image/jpeg", []byte("page2")),
		ImageInput("image/jpeg", []byte("page3")),
	})
	require.Error(t, err)
	assert.Equal(t, recipe.Candidate{}, merged)
	assert.ErrorIs(t, err, ErrSchemaViolation)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	// every sibling still ran to completion
	assert.Equal(t, int32(3), model.calls.Load())
}

func TestExtractor_ExtractAllRespectsConcurrencyLimit(t *testing.T) {
	model := &fakeModel{replies: map[string]string{}, delays: map[string]time.Duration{}}
	var inputs []Input
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		model.replies[key] = wafflePage
		model.delays[key] = 10 * time.Millisecond
		inputs = append(inputs, ImageInput("image/png", []byte(key)))
	}
	e := NewExtractor(model, nil, 2, nil)

	_, err := e.ExtractAll(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, int32(5), model.calls.Load())
	assert.LessOrEqual(t, model.maxSeen.Load(), int32(2))
}

func TestExtractor_CacheHitSkipsModel(t *testing.T) {
	model := &fakeModel{replies: map[string]string{"page2": wafflePage}}
	cache := newMemCache()
	e := NewExtractor(model, cache, 0, nil)
	in := ImageInput("image/png", []byte("page2"))

	first, err := e.Extract(context.Background(), in)
	require.NoError(t, err)
	second, err := e.Extract(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), model.calls.Load())
	assert.Contains(t, cache.entries, ContentHash(in))
}

func TestExtractor_FailuresAreNotCached(t *testing.T) {
	model := &fakeModel{replies: map[string]string{"bad": `{"name": ""}`}}
	cache := newMemCache()
	e := NewExtractor(model, cache, 0, nil)

	_, err := e.Extract(context.Background(), TextInput("bad"))
	require.Error(t, err)
	assert.Empty(t, cache.entries)
}

func TestExtractor_StoreCache(t *testing.T) {
	store, err := recipe.NewSQLStore(recipe.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	model := &fakeModel{replies: map[string]string{"page1": pancakePage}}
	e := NewExtractor(model, NewStoreCache(store), 0, nil)
	in := ImageInput("image/jpeg", []byte("page1"))

	_, err = e.Extract(context.Background(), in)
	require.NoError(t, err)
	c, err := e.Extract(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", c.Name)
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestContentHash(t *testing.T) {
	a := ContentHash(ImageInput("image/png", []byte("x")))
	assert.Len(t, a, 64)
	assert.Equal(t, a, ContentHash(ImageInput("image/png", []byte("x"))))
	assert.NotEqual(t, a, ContentHash(ImageInput("image/jpeg", []byte("x"))))
	assert.NotEqual(t, a, ContentHash(TextInput("x")))
}
