package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petparlor/triage/core"
)

func TestRegisterAndResolve(t *testing.T) {
	r := New()

	child := &core.Descriptor{Name: "user_setup", Instructions: "Walk the user through account setup."}
	parent := &core.Descriptor{
		Name:     "setup_guide",
		Children: []*core.Descriptor{child},
	}

	require.NoError(t, r.Register(parent))

	got, err := r.Resolve("setup_guide")
	require.NoError(t, err)
	assert.Same(t, parent, got)

	// Children are addressable directly.
	gotChild, err := r.Resolve("user_setup")
	require.NoError(t, err)
	assert.Same(t, child, gotChild)

	assert.Equal(t, []string{"user_setup", "setup_guide"}, r.Names())
}

func TestResolveUnknown(t *testing.T) {
	r := New()

	_, err := r.Resolve("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownAgent))
}

func TestRegisterDuplicateName(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&core.Descriptor{Name: "scheduling"}))

	err := r.Register(&core.Descriptor{Name: "scheduling"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDuplicateName))
}

func TestRegisterDuplicateChildName(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&core.Descriptor{Name: "importer"}))

	err := r.Register(&core.Descriptor{
		Name:     "setup_guide",
		Children: []*core.Descriptor{{Name: "importer"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDuplicateName))

	// Failed registration leaves no partial state behind.
	_, err = r.Resolve("setup_guide")
	assert.True(t, errors.Is(err, core.ErrUnknownAgent))
}

func TestRegisterRejectsCycle(t *testing.T) {
	a := &core.Descriptor{Name: "a"}
	b := &core.Descriptor{Name: "b", Children: []*core.Descriptor{a}}
	a.Children = []*core.Descriptor{b}

	err := New().Register(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCyclicDependency))
}

func TestRegisterSelfCycle(t *testing.T) {
	a := &core.Descriptor{Name: "a"}
	a.Children = []*core.Descriptor{a}

	err := New().Register(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCyclicDependency))
}

func TestRegisterDistinctChildrenWithSameName(t *testing.T) {
	root := &core.Descriptor{
		Name: "root",
		Children: []*core.Descriptor{
			{Name: "left", Children: []*core.Descriptor{{Name: "shared"}}},
			{Name: "right", Children: []*core.Descriptor{{Name: "shared"}}},
		},
	}

	err := New().Register(root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDuplicateName))
}

func TestRegisterSharedChildIsNotACycle(t *testing.T) {
	shared := &core.Descriptor{Name: "shared"}
	root := &core.Descriptor{
		Name: "root",
		Children: []*core.Descriptor{
			{Name: "left", Children: []*core.Descriptor{shared}},
			{Name: "right", Children: []*core.Descriptor{shared}},
		},
	}

	require.NoError(t, New().Register(root))
}

func TestRegisterUnnamedDescriptor(t *testing.T) {
	err := New().Register(&core.Descriptor{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}
