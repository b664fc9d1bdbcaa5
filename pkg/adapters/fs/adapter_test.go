package fs

import (
	"context"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/snfs/pkg/core"
	"github.com/aretw0/snfs/pkg/crypt"
	"github.com/aretw0/snfs/pkg/namespace"
	"github.com/aretw0/snfs/pkg/store"
	"github.com/aretw0/snfs/pkg/store/storetest"
)

var testKeys = crypt.DeriveKeys("hunter2", "salt", 1000)

type fixture struct {
	a       *Adapter
	store   *store.Store
	server  *storetest.Server
	changes int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{server: storetest.NewServer()}
	f.store = store.New(f.server, testKeys, store.Config{})
	a, err := New(f.store, nil, Config{
		Ext:      ".txt",
		OnChange: func() { f.changes++ },
	})
	require.NoError(t, err)
	f.a = a
	return f
}

func (f *fixture) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Sync(context.Background()))
	f.a.Clock().Observe(f.store.ModTimes())
}

func (f *fixture) create(t *testing.T, p, text string) {
	t.Helper()
	_, err := f.a.Create(p)
	require.NoError(t, err)
	if text != "" {
		_, err = f.a.Write(p, []byte(text), 0)
		require.NoError(t, err)
	}
}

func (f *fixture) mkdir(p string) error {
	_, err := f.a.Mkdir(p)
	return err
}

func (f *fixture) read(t *testing.T, p string) string {
	t.Helper()
	data, err := f.a.Read(p, 0, 1<<20)
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) names(t *testing.T, p string) []string {
	t.Helper()
	entries, err := f.a.Readdir(p)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out
}

func TestCreateWriteRead(t *testing.T) {
	f := newFixture(t)
	f.create(t, "/hello.txt", "hello world")

	assert.Equal(t, "hello world", f.read(t, "/hello.txt"))
	assert.Equal(t, []string{"hello.txt"}, f.names(t, "/"))
	assert.Positive(t, f.changes)

	attr, err := f.a.Stat("/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(11), attr.Size)
	assert.Equal(t, FilePerm, attr.Mode)
	assert.False(t, attr.IsDir())

	t.Run("Partial Read", func(t *testing.T) {
		data, err := f.a.Read("/hello.txt", 6, 3)
		require.NoError(t, err)
		assert.Equal(t, "wor", string(data))

		data, err = f.a.Read("/hello.txt", 100, 3)
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("Splice", func(t *testing.T) {
		_, err := f.a.Write("/hello.txt", []byte("W"), 6)
		require.NoError(t, err)
		assert.Equal(t, "hello World", f.read(t, "/hello.txt"))

		_, err = f.a.Write("/hello.txt", []byte("!!"), 11)
		require.NoError(t, err)
		assert.Equal(t, "hello World!!", f.read(t, "/hello.txt"))
	})

	t.Run("Truncate", func(t *testing.T) {
		require.NoError(t, f.a.Truncate("/hello.txt", 5))
		assert.Equal(t, "hello", f.read(t, "/hello.txt"))
		require.NoError(t, f.a.Truncate("/hello.txt", 0))
		assert.Empty(t, f.read(t, "/hello.txt"))
	})

	t.Run("Invalid UTF-8", func(t *testing.T) {
		_, err := f.a.Write("/hello.txt", []byte{0xff, 0xfe}, 0)
		assert.ErrorIs(t, err, core.ErrEncoding)
	})

	t.Run("Too Large", func(t *testing.T) {
		_, err := f.a.Write("/hello.txt", []byte("x"), 1<<50)
		assert.ErrorIs(t, err, core.ErrTooLarge)
		_, err = f.a.Write("/hello.txt", []byte("x"), math.MaxInt64)
		assert.ErrorIs(t, err, core.ErrTooLarge)
		_, err = f.a.Write("/hello.txt", []byte("x"), MaxNoteSize)
		assert.ErrorIs(t, err, core.ErrTooLarge)
		assert.ErrorIs(t, f.a.Truncate("/hello.txt", 1<<50), core.ErrTooLarge)
		assert.ErrorIs(t, f.a.Truncate("/hello.txt", MaxNoteSize+1), core.ErrTooLarge)
		assert.Empty(t, f.read(t, "/hello.txt"))

		_, err = f.a.Write("/hello.txt", []byte("x"), MaxNoteSize-1)
		require.NoError(t, err)
		require.NoError(t, f.a.Truncate("/hello.txt", 0))
	})

	t.Run("Round Trip Through Server", func(t *testing.T) {
		_, err := f.a.Write("/hello.txt", []byte("synced"), 0)
		require.NoError(t, err)
		f.sync(t)

		other := store.New(f.server, testKeys, store.Config{})
		require.NoError(t, other.Sync(context.Background()))
		items := other.Snapshot()
		require.Len(t, items, 1)
		n, _ := items[0].Note()
		assert.Equal(t, "hello", n.Title)
		assert.Equal(t, "synced", n.Text)
	})
}

func TestCreateRules(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mkdir("/tags/work"))

	tests := []struct {
		path string
		err  error
	}{
		{"/.hidden.txt", core.ErrPermissionDenied},
		{"/notes.md", core.ErrPermissionDenied},
		{"/backup.txt~", core.ErrPermissionDenied},
		{"/4913", core.ErrPermissionDenied},
		{"/tags/loose.txt", core.ErrPermissionDenied},
		{"/archived/a.txt", core.ErrPermissionDenied},
		{"/trash/a.txt", core.ErrPermissionDenied},
		{"/tags/nope/a.txt", core.ErrNotFound},
		{"/a/b/c/d.txt", core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := f.a.Create(tt.path)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	t.Run("Existing Name", func(t *testing.T) {
		f.create(t, "/a.txt", "")
		_, err := f.a.Create("/a.txt")
		assert.ErrorIs(t, err, core.ErrExists)
	})

	t.Run("Inside Tag", func(t *testing.T) {
		f.create(t, "/tags/work/plan.txt", "ship it")
		assert.Equal(t, []string{"plan.txt"}, f.names(t, "/tags/work"))
		assert.Equal(t, "ship it", f.read(t, "/plan.txt"))
	})
}

func TestRootListing(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, f.names(t, "/"))

	// Pseudo-directories resolve even when hidden from the listing.
	for _, p := range []string{"/tags", "/archived", "/trash"} {
		attr, err := f.a.Stat(p)
		require.NoError(t, err, p)
		assert.True(t, attr.IsDir())
		assert.Equal(t, DirPerm, attr.Mode.Perm())
	}

	f.create(t, "/a.txt", "")
	f.create(t, "/b.txt", "")
	require.NoError(t, f.mkdir("/tags/t"))
	require.NoError(t, f.a.Rename("/b.txt", "/archived/b.txt"))
	assert.Equal(t, []string{"a.txt", "archived", "tags"}, f.names(t, "/"))

	require.NoError(t, f.a.Remove("/a.txt"))
	assert.Equal(t, []string{"archived", "tags", "trash"}, f.names(t, "/"))

	root, err := f.a.Stat("/")
	require.NoError(t, err)
	assert.Equal(t, namespace.RootInode, root.Inode)

	_, err = f.a.Readdir("/archived/b.txt")
	assert.ErrorIs(t, err, core.ErrNotDirectory)
	_, err = f.a.Read("/tags", 0, 10)
	assert.ErrorIs(t, err, core.ErrIsDirectory)
}

func TestTwoStageDelete(t *testing.T) {
	f := newFixture(t)
	f.create(t, "/doomed.txt", "bye")
	f.sync(t)

	require.NoError(t, f.a.Remove("/doomed.txt"))
	_, err := f.a.Stat("/doomed.txt")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "bye", f.read(t, "/trash/doomed.txt"))

	require.NoError(t, f.a.Remove("/trash/doomed.txt"))
	_, err = f.a.Stat("/trash/doomed.txt")
	assert.ErrorIs(t, err, core.ErrNotFound)

	f.sync(t)
	assert.Empty(t, f.store.Snapshot())

	assert.ErrorIs(t, f.a.Remove("/tags"), core.ErrIsDirectory)
	assert.ErrorIs(t, f.a.Remove("/missing.txt"), core.ErrNotFound)
}

func TestTags(t *testing.T) {
	f := newFixture(t)
	f.create(t, "/note.txt", "body")

	require.NoError(t, f.mkdir("/tags/work"))
	assert.ErrorIs(t, f.mkdir("/tags/work"), core.ErrExists)
	assert.ErrorIs(t, f.mkdir("/elsewhere"), core.ErrPermissionDenied)
	assert.ErrorIs(t, f.mkdir("/tags/with space"), core.ErrPermissionDenied)
	assert.ErrorIs(t, f.mkdir("/tags/.hidden"), core.ErrPermissionDenied)

	t.Run("Tag By Rename", func(t *testing.T) {
		require.NoError(t, f.a.Rename("/note.txt", "/tags/work/note.txt"))
		assert.Equal(t, []string{"note.txt"}, f.names(t, "/tags/work"))
		// The note stays where it was.
		assert.Equal(t, []string{"note.txt", "tags"}, f.names(t, "/"))

		attr, err := f.a.Stat("/tags/work/note.txt")
		require.NoError(t, err)
		rootAttr, err := f.a.Stat("/note.txt")
		require.NoError(t, err)
		assert.Equal(t, rootAttr.Inode, attr.Inode)
	})

	t.Run("Ambiguous Rename", func(t *testing.T) {
		err := f.a.Rename("/note.txt", "/tags/work/other.txt")
		assert.ErrorIs(t, err, core.ErrPermissionDenied)
	})

	t.Run("Move Between Tags", func(t *testing.T) {
		require.NoError(t, f.mkdir("/tags/home"))
		require.NoError(t, f.a.Rename("/tags/work/note.txt", "/tags/home/note.txt"))
		assert.Empty(t, f.names(t, "/tags/work"))
		assert.Equal(t, []string{"note.txt"}, f.names(t, "/tags/home"))
	})

	t.Run("Rename Inside Tag", func(t *testing.T) {
		require.NoError(t, f.a.Rename("/tags/home/note.txt", "/tags/home/memo.txt"))
		assert.Equal(t, []string{"memo.txt"}, f.names(t, "/tags/home"))
		assert.Equal(t, []string{"memo.txt", "tags"}, f.names(t, "/"))
		assert.Equal(t, "body", f.read(t, "/memo.txt"))

		require.NoError(t, f.a.Rename("/tags/home/memo.txt", "/tags/home/note.txt"))
		assert.Equal(t, []string{"note.txt"}, f.names(t, "/tags/home"))
	})

	t.Run("Untag By Unlink", func(t *testing.T) {
		require.NoError(t, f.a.Remove("/tags/home/note.txt"))
		assert.Empty(t, f.names(t, "/tags/home"))
		assert.Equal(t, "body", f.read(t, "/note.txt"))
	})

	t.Run("Rename Tag", func(t *testing.T) {
		require.NoError(t, f.a.Rename("/tags/home", "/tags/house"))
		assert.Equal(t, []string{"house", "work"}, f.names(t, "/tags"))
		assert.ErrorIs(t, f.a.Rename("/tags/house", "/tags/work"), core.ErrExists)
	})

	t.Run("Rmdir", func(t *testing.T) {
		require.NoError(t, f.a.Rmdir("/tags/house"))
		assert.Equal(t, []string{"work"}, f.names(t, "/tags"))
		assert.ErrorIs(t, f.a.Rmdir("/tags/house"), core.ErrNotFound)
		assert.ErrorIs(t, f.a.Rmdir("/tags"), core.ErrPermissionDenied)
		assert.ErrorIs(t, f.a.Rmdir("/note.txt"), core.ErrNotDirectory)
	})
}

func TestRenameNotes(t *testing.T) {
	f := newFixture(t)
	f.create(t, "/draft.txt", "text")
	f.create(t, "/other.txt", "")

	require.NoError(t, f.a.Rename("/draft.txt", "/final.txt"))
	assert.Equal(t, "text", f.read(t, "/final.txt"))
	_, err := f.a.Stat("/draft.txt")
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, f.a.Rename("/final.txt", "/other.txt"), core.ErrExists)
	assert.ErrorIs(t, f.a.Rename("/final.txt", "/final.md"), core.ErrPermissionDenied)
	assert.ErrorIs(t, f.a.Rename("/final.txt", "/.final.txt.swp"), core.ErrPermissionDenied)
	assert.ErrorIs(t, f.a.Rename("/tags", "/labels"), core.ErrPermissionDenied)
	assert.NoError(t, f.a.Rename("/final.txt", "/final.txt"))

	t.Run("Archive And Restore", func(t *testing.T) {
		require.NoError(t, f.a.Rename("/final.txt", "/archived/final.txt"))
		assert.Equal(t, []string{"final.txt"}, f.names(t, "/archived"))
		require.NoError(t, f.a.Rename("/archived/final.txt", "/final.txt"))
		assert.Empty(t, f.names(t, "/archived"))
	})

	t.Run("Restore From Trash", func(t *testing.T) {
		require.NoError(t, f.a.Remove("/final.txt"))
		require.NoError(t, f.a.Rename("/trash/final.txt", "/restored.txt"))
		assert.Equal(t, "text", f.read(t, "/restored.txt"))
		assert.Empty(t, f.names(t, "/trash"))
	})
}

func TestPermissions(t *testing.T) {
	f := newFixture(t)
	f.create(t, "/a.txt", "")

	assert.NoError(t, f.a.Chmod("/a.txt", 0o600))
	assert.ErrorIs(t, f.a.Chmod("/a.txt", 0o644), core.ErrPermissionDenied)
	assert.NoError(t, f.a.Chmod("/", 0o700))
	assert.ErrorIs(t, f.a.Chmod("/", 0o755), core.ErrPermissionDenied)
	assert.ErrorIs(t, f.a.Chmod("/missing.txt", 0o600), core.ErrNotFound)

	assert.ErrorIs(t, f.a.Chown("/a.txt", 0, 0), core.ErrPermissionDenied)

	assert.NoError(t, f.a.Access("/a.txt", 0x4|0x2))
	assert.ErrorIs(t, f.a.Access("/a.txt", ExecuteAccess), core.ErrPermissionDenied)
	assert.NoError(t, f.a.Access("/tags", ExecuteAccess))

	assert.ErrorIs(t, f.a.Symlink("/a.txt", "/link.txt"), core.ErrPermissionDenied)
	target, err := f.a.Readlink("/a.txt")
	assert.NoError(t, err)
	assert.Empty(t, target)
}

func TestModificationTimes(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 5, 5, 10, 0, 0, 0, time.UTC)
	f.a.config.Now = func() time.Time { return now }

	f.create(t, "/a.txt", "x")
	attr, err := f.a.Stat("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, now, attr.Mtime)

	f.sync(t)
	attr, err = f.a.Stat("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, now, attr.Mtime)

	now = now.Add(time.Hour)
	require.NoError(t, f.a.Touch("/a.txt"))
	attr, _ = f.a.Stat("/a.txt")
	assert.Equal(t, now, attr.Mtime)

	assert.NoError(t, f.a.Touch("/tags"))
}

func TestRemoteChangesAppear(t *testing.T) {
	f := newFixture(t)
	enc, err := crypt.EncryptItem(&core.Item{
		UUID:        "remote",
		ContentType: core.ContentTypeNote,
		CreatedAt:   time.Now(),
		Content:     &core.NoteContent{Title: "From/Phone", Text: "hi"},
	}, testKeys)
	require.NoError(t, err)
	f.server.Put(enc)

	f.sync(t)
	assert.Equal(t, "hi", f.read(t, "/From-Phone.txt"))
}

func TestRejectPatternValidation(t *testing.T) {
	_, err := New(store.New(storetest.NewServer(), testKeys, store.Config{}), nil, Config{Reject: []string{"[unclosed"}})
	assert.Error(t, err)
}
