package session_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgate/internal/apperr"
	"postgate/internal/logger"
	"postgate/internal/session"
	"postgate/internal/social/socialtest"
	"postgate/internal/storage"
)

func newManager(t *testing.T) (*session.Manager, *session.Store, *socialtest.Client) {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	client := socialtest.New()
	return session.NewManager(store, client, storage.NewAccountLocks(), logger.Discard()), store, client
}

func TestAcquireWithoutRecordLogsInOnceAndPersists(t *testing.T) {
	t.Parallel()

	m, store, client := newManager(t)

	sess, err := m.Acquire(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.(*socialtest.Session).Identifier)

	assert.Equal(t, 1, client.Logins)
	assert.Equal(t, 1, client.Saves)
	assert.Zero(t, client.Probes)
	assert.True(t, store.Exists("alice"))

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "exactly one record and no leftover temp files")

	info, err := os.Stat(store.PathFor("alice"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAcquireReusesLiveCachedSession(t *testing.T) {
	t.Parallel()

	m, _, client := newManager(t)
	ctx := context.Background()

	first, err := m.Acquire(ctx, "alice", "pw")
	require.NoError(t, err)

	second, err := m.Acquire(ctx, "alice", "pw")
	require.NoError(t, err)

	assert.Equal(t, 1, client.Logins, "fast path must not log in again")
	assert.Equal(t, 1, client.Probes)
	assert.Equal(t, first.(*socialtest.Session).Generation, second.(*socialtest.Session).Generation)
}

func TestAcquireFallsBackWhenProbeFails(t *testing.T) {
	t.Parallel()

	m, store, client := newManager(t)
	ctx := context.Background()

	_, err := m.Acquire(ctx, "alice", "pw")
	require.NoError(t, err)
	before, err := os.ReadFile(store.PathFor("alice"))
	require.NoError(t, err)

	client.ProbeErr = errors.New("session expired")

	sess, err := m.Acquire(ctx, "alice", "pw")
	require.NoError(t, err)

	assert.Equal(t, 2, client.Logins)
	assert.Equal(t, 2, sess.(*socialtest.Session).Generation)

	after, err := os.ReadFile(store.PathFor("alice"))
	require.NoError(t, err)
	assert.NotEqual(t, before, after, "record must be overwritten")
}

func TestAcquireFallsBackOnCorruptRecord(t *testing.T) {
	t.Parallel()

	m, store, client := newManager(t)
	require.NoError(t, os.WriteFile(store.PathFor("alice"), []byte("{not json"), 0o600))

	_, err := m.Acquire(context.Background(), "alice", "pw")
	require.NoError(t, err)

	assert.Equal(t, 1, client.Logins)
	assert.Zero(t, client.Loads, "undecodable record never reaches the client")

	// the rewritten record is usable
	_, err = m.Acquire(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, 1, client.Logins)
}

func TestAcquireWithDifferentSecretLogsInAgain(t *testing.T) {
	t.Parallel()

	m, _, client := newManager(t)
	ctx := context.Background()

	_, err := m.Acquire(ctx, "alice", "old")
	require.NoError(t, err)
	_, err = m.Acquire(ctx, "alice", "new")
	require.NoError(t, err)

	assert.Equal(t, 2, client.Logins)
}

func TestAcquireLoginFailureIsAuthenticationError(t *testing.T) {
	t.Parallel()

	m, store, client := newManager(t)
	client.Secrets["alice"] = "right"

	_, err := m.Acquire(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
	assert.ErrorIs(t, err, socialtest.ErrBadCredentials)
	assert.False(t, store.Exists("alice"))
}

func TestAcquireSerializesSameAccount(t *testing.T) {
	t.Parallel()

	m, _, client := newManager(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Acquire(context.Background(), "alice", "pw")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	logins, probes, _ := client.Counts()
	assert.Equal(t, 1, logins)
	assert.Equal(t, 15, probes)
}
