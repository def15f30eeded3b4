package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petparlor/triage/logging"
	"github.com/petparlor/triage/runtime"
)

func TestGetCreatesSessionWithThread(t *testing.T) {
	rt := runtime.NewMockRuntime()
	store := NewStore(rt, logging.NoOpLogger{})

	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.NotEmpty(t, sess.ThreadID)
	require.NoError(t, rt.GetThread(context.Background(), sess.ThreadID))

	// Same id returns the same session.
	again, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Same(t, sess, again)
	assert.Equal(t, 1, store.Len())
}

func TestGetGeneratesID(t *testing.T) {
	store := NewStore(runtime.NewMockRuntime(), logging.NoOpLogger{})

	sess, err := store.Get(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
}

func TestEndReleasesThreadAndEvicts(t *testing.T) {
	rt := runtime.NewMockRuntime()
	store := NewStore(rt, logging.NoOpLogger{})

	sess, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	sess.SetAuth("firebaseIdToken", "tok")

	store.End(context.Background(), "s1")
	assert.Equal(t, []string{sess.ThreadID}, rt.Released)
	_, ok := store.Lookup("s1")
	assert.False(t, ok)

	// Reusing the id yields a brand-new session and thread.
	fresh, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotEqual(t, sess.ThreadID, fresh.ThreadID)
	_, ok = fresh.Auth("firebaseIdToken")
	assert.False(t, ok)
}

func TestEndSwallowsReleaseFailure(t *testing.T) {
	rt := runtime.NewMockRuntime()
	store := NewStore(rt, logging.NoOpLogger{})

	_, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)

	rt.FailRelease(errors.New("gone"))
	store.End(context.Background(), "s1")

	// Session is evicted even though the runtime refused the release.
	_, ok := store.Lookup("s1")
	assert.False(t, ok)
}

func TestEndUnknownSessionIsNoOp(t *testing.T) {
	rt := runtime.NewMockRuntime()
	store := NewStore(rt, logging.NoOpLogger{})

	store.End(context.Background(), "never-created")
	assert.Empty(t, rt.Released)
}
