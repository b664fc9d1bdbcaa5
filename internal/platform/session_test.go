package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/snfs/pkg/core"
	"github.com/aretw0/snfs/pkg/crypt"
	"github.com/aretw0/snfs/pkg/store/storetest"
)

var sessionKeys = crypt.DeriveKeys("secret", "salt", testCost)

func newTestSession(t *testing.T, srv *storetest.Server, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSettleDelay(time.Millisecond),
		WithOwner(1000, 1000),
	}
	sess, err := New(srv, sessionKeys, append(base, opts...)...)
	require.NoError(t, err)
	return sess
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Initial Sync Populates View", func(t *testing.T) {
		srv := storetest.NewServer()
		enc, err := crypt.EncryptItem(&core.Item{
			UUID:        "n1",
			ContentType: core.ContentTypeNote,
			CreatedAt:   time.Unix(10, 0).UTC(),
			Content:     &core.NoteContent{Title: "groceries", Text: "milk"},
		}, sessionKeys)
		require.NoError(t, err)
		srv.Put(enc)

		sess := newTestSession(t, srv)
		require.NoError(t, sess.Start(ctx))
		defer sess.Close(ctx)

		data, err := sess.Adapter().Read("/groceries.txt", 0, 100)
		require.NoError(t, err)
		assert.Equal(t, "milk", string(data))

		attr, err := sess.Adapter().Stat("/groceries.txt")
		require.NoError(t, err)
		assert.Equal(t, uint32(1000), attr.UID)
	})

	t.Run("Close Flushes Local Edits", func(t *testing.T) {
		srv := storetest.NewServer()
		sess := newTestSession(t, srv, WithExtension(".md"))
		require.NoError(t, sess.Start(ctx))

		_, err := sess.Adapter().Create("/todo.md")
		require.NoError(t, err)
		_, err = sess.Adapter().Write("/todo.md", []byte("ship it"), 0)
		require.NoError(t, err)

		require.NoError(t, sess.Close(ctx))
		require.Equal(t, 1, srv.Len())

		var found *core.Item
		for _, it := range sess.Store().Snapshot() {
			found = it
		}
		require.NotNil(t, found)
		enc, ok := srv.Item(found.UUID)
		require.True(t, ok)
		dec, err := crypt.DecryptItem(enc, sessionKeys)
		require.NoError(t, err)
		note, ok := dec.Note()
		require.True(t, ok)
		assert.Equal(t, "todo", note.Title)
		assert.Equal(t, "ship it", note.Text)
	})

	t.Run("Starts Offline", func(t *testing.T) {
		srv := storetest.NewServer()
		srv.SetErr(fmt.Errorf("dial: %w", core.ErrOffline))

		sess := newTestSession(t, srv)
		require.NoError(t, sess.Start(ctx))
		entries, err := sess.Adapter().Readdir("/")
		require.NoError(t, err)
		assert.Empty(t, entries)

		srv.SetErr(nil)
		require.NoError(t, sess.Close(ctx))
	})

	t.Run("Fatal Initial Sync", func(t *testing.T) {
		srv := storetest.NewServer()
		srv.SetErr(core.ErrTamperDetected)

		sess := newTestSession(t, srv)
		err := sess.Start(ctx)
		assert.ErrorIs(t, err, core.ErrTamperDetected)
		assert.NoError(t, sess.Close(ctx))
	})

	t.Run("Introspect", func(t *testing.T) {
		sess := newTestSession(t, storetest.NewServer())
		state := sess.Introspect()
		assert.Contains(t, state, "item-store")
		assert.Contains(t, state, "filesystem")
		assert.Contains(t, state, "sync-scheduler")
	})

	t.Run("Rejects Bad Patterns", func(t *testing.T) {
		_, err := New(storetest.NewServer(), sessionKeys, WithRejectPatterns("[unclosed"))
		assert.Error(t, err)
	})
}
