package fs

import (
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/snfs/pkg/core"
	"github.com/aretw0/snfs/pkg/namespace"
	"github.com/aretw0/snfs/pkg/store"
)

const (
	// FilePerm is the only mode notes carry.
	FilePerm fs.FileMode = 0o600
	// DirPerm is the only mode directories carry.
	DirPerm fs.FileMode = 0o700
	// MaxNoteSize caps the text a write or truncate may produce.
	MaxNoteSize int64 = 1 << 24
	// DefaultExt is the default note file extension.
	DefaultExt = ".txt"
)

// DefaultReject lists the names editors and shells create as scratch files.
var DefaultReject = []string{".*", "*~", "*.swp", "*.swx", "4913"}

// Config holds adapter settings.
type Config struct {
	Logger *slog.Logger
	// Ext is appended to note titles to form file names.
	Ext string
	// Reject holds glob patterns of names that cannot be created.
	Reject []string
	// OnChange is called after every successful mutation.
	OnChange func()
	Now      func() time.Time
	UID, GID uint32
}

// Adapter maps path-addressed filesystem operations onto the item store.
// Every operation resolves its path and applies its mutation under one
// store lock, so the name it acted on cannot change underneath it.
type Adapter struct {
	store     *store.Store
	projector *namespace.Projector
	clock     *namespace.Clock
	config    Config
	started   time.Time

	writes  atomic.Int64
	creates atomic.Int64
	removes atomic.Int64
	renames atomic.Int64
}

// Attr describes a file or directory.
type Attr struct {
	Inode uint64
	Mode  fs.FileMode
	Size  int64
	Nlink uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	UID   uint32
	GID   uint32
}

// IsDir reports whether the attributes describe a directory.
func (a Attr) IsDir() bool { return a.Mode.IsDir() }

// DirEntry is one name in a directory listing.
type DirEntry struct {
	Name  string
	Inode uint64
	IsDir bool
}

// New creates an adapter over st. The clock may be shared with the sync
// scheduler.
func New(st *store.Store, clock *namespace.Clock, config Config) (*Adapter, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Reject == nil {
		config.Reject = DefaultReject
	}
	for _, p := range config.Reject {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid reject pattern %q", p)
		}
	}
	if clock == nil {
		clock = namespace.NewClock()
	}
	return &Adapter{
		store:     st,
		projector: namespace.NewProjector(config.Ext),
		clock:     clock,
		config:    config,
		started:   config.Now(),
	}, nil
}

// Clock returns the modification clock used for note times.
func (a *Adapter) Clock() *namespace.Clock { return a.clock }

func (a *Adapter) view(fn func(ns *namespace.Namespace) error) error {
	return a.store.View(func(items []*core.Item) error {
		return fn(a.projector.Project(items))
	})
}

func (a *Adapter) update(fn func(tx *store.Tx, ns *namespace.Namespace) error) error {
	err := a.store.Update(func(tx *store.Tx) error {
		return fn(tx, a.projector.Project(tx.Items()))
	})
	if err == nil && a.config.OnChange != nil {
		a.config.OnChange()
	}
	return err
}

func (a *Adapter) lookup(ns *namespace.Namespace, p string) (target, error) {
	loc, err := parsePath(p)
	if err != nil {
		return target{}, fmt.Errorf("%s: %w", p, err)
	}
	t, err := resolve(ns, loc)
	if err != nil {
		return t, fmt.Errorf("%s: %w", p, err)
	}
	return t, nil
}

func (a *Adapter) rejected(name string) bool {
	for _, p := range a.config.Reject {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Stat returns the attributes of a path.
func (a *Adapter) Stat(p string) (Attr, error) {
	var attr Attr
	err := a.view(func(ns *namespace.Namespace) error {
		t, err := a.lookup(ns, p)
		if err != nil {
			return err
		}
		attr = a.attr(ns, t)
		return nil
	})
	return attr, err
}

func (a *Adapter) attr(ns *namespace.Namespace, t target) Attr {
	attr := Attr{
		Inode: t.inode(),
		UID:   a.config.UID,
		GID:   a.config.GID,
	}

	if t.kind.isDir() {
		attr.Mode = fs.ModeDir | DirPerm
		attr.Nlink = 2
		attr.Size = int64(len(a.children(ns, t)))
		attr.Mtime, attr.Ctime = a.started, a.started
		if t.tag != nil {
			attr.Mtime = t.tag.Item.ModifiedAt()
			attr.Ctime = t.tag.Item.CreatedAt
		}
		attr.Atime = attr.Mtime
		return attr
	}

	attr.Mode = FilePerm
	attr.Nlink = 1
	attr.Size = int64(len(t.note.Note.Text))
	attr.Mtime = t.note.Item.ModifiedAt()
	if local, ok := a.clock.Local(t.note.UUID()); ok {
		attr.Mtime = local
	}
	attr.Ctime = t.note.Item.CreatedAt
	attr.Atime = attr.Mtime
	return attr
}

// Readdir lists a directory.
func (a *Adapter) Readdir(p string) ([]DirEntry, error) {
	var entries []DirEntry
	err := a.view(func(ns *namespace.Namespace) error {
		t, err := a.lookup(ns, p)
		if err != nil {
			return err
		}
		if !t.kind.isDir() {
			return fmt.Errorf("%s: %w", p, core.ErrNotDirectory)
		}
		entries = a.children(ns, t)
		return nil
	})
	return entries, err
}

func (a *Adapter) children(ns *namespace.Namespace, t target) []DirEntry {
	var out []DirEntry
	notes := func(es []*namespace.NoteEntry) {
		for _, e := range es {
			out = append(out, DirEntry{Name: e.Name, Inode: e.Inode})
		}
	}

	switch t.kind {
	case kindRoot:
		if len(ns.Tags()) > 0 {
			out = append(out, DirEntry{Name: namespace.TagsDir, Inode: namespace.TagsInode, IsDir: true})
		}
		if len(ns.Notes(namespace.PartitionArchived)) > 0 {
			out = append(out, DirEntry{Name: namespace.ArchivedDir, Inode: namespace.ArchivedInode, IsDir: true})
		}
		if len(ns.Notes(namespace.PartitionTrash)) > 0 {
			out = append(out, DirEntry{Name: namespace.TrashDir, Inode: namespace.TrashInode, IsDir: true})
		}
		notes(ns.Notes(namespace.PartitionDefault))
	case kindTags:
		for _, tag := range ns.Tags() {
			out = append(out, DirEntry{Name: tag.Name, Inode: tag.Inode, IsDir: true})
		}
	case kindTag:
		notes(t.tag.Members)
	case kindArchived:
		notes(ns.Notes(namespace.PartitionArchived))
	case kindTrash:
		notes(ns.Notes(namespace.PartitionTrash))
	}
	return out
}

// Read returns up to size bytes of a note starting at off.
func (a *Adapter) Read(p string, off int64, size int) ([]byte, error) {
	var data []byte
	err := a.view(func(ns *namespace.Namespace) error {
		t, err := a.lookup(ns, p)
		if err != nil {
			return err
		}
		if t.kind.isDir() {
			return fmt.Errorf("%s: %w", p, core.ErrIsDirectory)
		}
		text := t.note.Note.Text
		if off >= int64(len(text)) {
			return nil
		}
		end := min(off+int64(size), int64(len(text)))
		data = []byte(text[off:end])
		return nil
	})
	return data, err
}
