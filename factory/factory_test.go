package factory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/registry"
	"github.com/petparlor/triage/runtime"
	"github.com/petparlor/triage/tool"
)

func testProvider() tool.Provider {
	return &tool.StaticProvider{Docs: map[string]map[string]any{
		"customer": {"info": map[string]any{"title": "Customer API"}, "paths": map[string]any{}},
		"pet":      {"info": map[string]any{"title": "Pet API"}, "paths": map[string]any{}},
	}}
}

func newTestFactory(t *testing.T, descriptors ...*core.Descriptor) (*Factory, *runtime.MockRuntime) {
	t.Helper()
	reg := registry.New()
	for _, d := range descriptors {
		require.NoError(t, reg.Register(d))
	}
	rt := runtime.NewMockRuntime()
	f, err := New(reg, rt, testProvider(), "gpt-4o-mini")
	require.NoError(t, err)
	return f, rt
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(registry.New(), runtime.NewMockRuntime(), testProvider(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestGetOrCreateCachesHandle(t *testing.T) {
	f, rt := newTestFactory(t, &core.Descriptor{
		Name:  "customer_api_agent",
		Tools: []core.ToolRef{{Name: "customer_api", APIResource: "customer"}},
	})

	h1, err := f.GetOrCreate(context.Background(), "customer_api_agent")
	require.NoError(t, err)
	require.Len(t, h1.Tools, 1)
	assert.Equal(t, "Customer API", h1.Tools[0].Description)

	h2, err := f.GetOrCreate(context.Background(), "customer_api_agent")
	require.NoError(t, err)
	assert.Same(t, h1, h2)
	assert.Equal(t, 1, rt.CreateCalls["customer_api_agent"])
}

func TestGetOrCreateConcurrentSingleCreation(t *testing.T) {
	f, rt := newTestFactory(t, &core.Descriptor{Name: "scheduling"})

	var wg sync.WaitGroup
	handles := make([]*core.Handle, 16)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := f.GetOrCreate(context.Background(), "scheduling")
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, rt.CreateCalls["scheduling"])
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
}

func TestGetOrCreateInstantiatesChildren(t *testing.T) {
	f, rt := newTestFactory(t, &core.Descriptor{
		Name:     "setup_guide",
		Children: []*core.Descriptor{{Name: "user_setup"}},
	})

	h, err := f.GetOrCreate(context.Background(), "setup_guide")
	require.NoError(t, err)
	require.Len(t, h.Children, 1)
	assert.Equal(t, "user_setup", h.Children[0].Descriptor.Name)

	// The child handle is shared, not re-created.
	child, err := f.GetOrCreate(context.Background(), "user_setup")
	require.NoError(t, err)
	assert.Same(t, h.Children[0], child)
	assert.Equal(t, 1, rt.CreateCalls["user_setup"])
}

func TestGetOrCreateUnknownAgent(t *testing.T) {
	f, _ := newTestFactory(t)

	_, err := f.GetOrCreate(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownAgent))
}

func TestGetOrCreateToolResolutionFailure(t *testing.T) {
	f, rt := newTestFactory(t, &core.Descriptor{
		Name:  "document_api_agent",
		Tools: []core.ToolRef{{Name: "document_api", APIResource: "document"}},
	})

	_, err := f.GetOrCreate(context.Background(), "document_api_agent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrToolResolution))

	// No partial agent was created or cached.
	assert.Equal(t, 0, rt.CreateCalls["document_api_agent"])
	assert.False(t, f.Cached("document_api_agent"))
}

func TestGetOrCreateRuntimeFailureIsNotCached(t *testing.T) {
	f, rt := newTestFactory(t, &core.Descriptor{Name: "importer"})
	rt.FailCreate("importer", errors.New("boom"))

	_, err := f.GetOrCreate(context.Background(), "importer")
	require.Error(t, err)
	assert.False(t, f.Cached("importer"))

	// Creation succeeds once the runtime recovers.
	rt2 := runtime.NewMockRuntime()
	reg := registry.New()
	require.NoError(t, reg.Register(&core.Descriptor{Name: "importer"}))
	f2, err := New(reg, rt2, testProvider(), "gpt-4o-mini")
	require.NoError(t, err)
	_, err = f2.GetOrCreate(context.Background(), "importer")
	require.NoError(t, err)
}

func TestInvalidateForcesRecreation(t *testing.T) {
	f, rt := newTestFactory(t, &core.Descriptor{Name: "scheduling"})

	h1, err := f.GetOrCreate(context.Background(), "scheduling")
	require.NoError(t, err)

	f.Invalidate("scheduling")
	assert.False(t, f.Cached("scheduling"))

	h2, err := f.GetOrCreate(context.Background(), "scheduling")
	require.NoError(t, err)
	assert.NotEqual(t, h1.RuntimeID, h2.RuntimeID)
	assert.Equal(t, 2, rt.CreateCalls["scheduling"])
}
