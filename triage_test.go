package triage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petparlor/triage/agents"
	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/runtime"
	"github.com/petparlor/triage/tool"
)

func catalogProvider() tool.Provider {
	docs := map[string]map[string]any{}
	for _, r := range []string{"address", "booking", "customer", "document", "employee", "pet", "team", "tenant"} {
		docs[r] = map[string]any{
			"info":  map[string]any{"title": r + " API"},
			"paths": map[string]any{},
		}
	}
	return &tool.StaticProvider{Docs: docs}
}

func TestFacadeDirectTurn(t *testing.T) {
	rt := runtime.NewMockRuntime()
	rt.Script(agents.TriageName, "Hello! I can help with scheduling, imports and your PetParlor data.")

	tr, err := New(func(o *Options) {
		o.Runtime = rt
		o.ToolProvider = catalogProvider()
	})
	require.NoError(t, err)

	els := tr.HandleTurnSync(context.Background(), "s1", "good morning")
	require.Len(t, els, 1)
	assert.Contains(t, core.ElementText(els[0]), "scheduling")
}

func TestFacadeCustomerScopedTurn(t *testing.T) {
	rt := runtime.NewMockRuntime()
	rt.Script(agents.APIReaderName("customer"), `{"id": "c-7", "name": "Jane"}`)
	rt.Script(agents.APIReaderName("pet"), "Jane has one cat named Misha.")

	tr, err := New(func(o *Options) {
		o.Runtime = rt
		o.ToolProvider = catalogProvider()
	})
	require.NoError(t, err)

	require.NoError(t, tr.SetAuth(context.Background(), "s1", "firebaseIdToken", "tok"))

	els := tr.HandleTurnSync(context.Background(), "s1", "show pets for customer Jane")
	require.NotEmpty(t, els)
	assert.Contains(t, core.ElementText(els[len(els)-1]), "Misha")
}

func TestFacadeAgentsListing(t *testing.T) {
	tr, err := New(func(o *Options) {
		o.ToolProvider = catalogProvider()
	})
	require.NoError(t, err)

	infos := tr.Agents()
	assert.Len(t, infos, 13)
}

func TestFacadeEndSession(t *testing.T) {
	rt := runtime.NewMockRuntime()
	rt.Script(agents.TriageName, "Hi there, what can I do for you?")

	tr, err := New(func(o *Options) {
		o.Runtime = rt
		o.ToolProvider = catalogProvider()
	})
	require.NoError(t, err)

	tr.HandleTurnSync(context.Background(), "s1", "hello")
	tr.EndSession(context.Background(), "s1")
	assert.Len(t, rt.Released, 1)
}
