// Package namespace projects the item set onto unique file and directory
// names.
package namespace

import (
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/snfs/pkg/core"
)

// Reserved inode numbers.
const (
	RootInode uint64 = iota + 1
	TagsInode
	ArchivedInode
	TrashInode
	firstItemInode
)

// Names of the pseudo-directories at the root.
const (
	TagsDir     = "tags"
	ArchivedDir = "archived"
	TrashDir    = "trash"
)

// UntitledName replaces empty titles.
const UntitledName = "Untitled"

// Partition is the top-level view a note is listed in.
type Partition int

const (
	PartitionDefault Partition = iota
	PartitionArchived
	PartitionTrash
)

func (p Partition) String() string {
	switch p {
	case PartitionArchived:
		return ArchivedDir
	case PartitionTrash:
		return TrashDir
	default:
		return "default"
	}
}

// Entry is a named item in the projection.
type Entry struct {
	Name  string
	Inode uint64
	Item  *core.Item
}

// UUID returns the id of the underlying item.
func (e *Entry) UUID() string { return e.Item.UUID }

// NoteEntry is a projected note.
type NoteEntry struct {
	Entry
	Note      *core.NoteContent
	Partition Partition
}

// TagEntry is a projected tag and its live members.
type TagEntry struct {
	Entry
	Tag     *core.TagContent
	Members []*NoteEntry
}

// Projector assigns stable inode numbers and builds projections.
// It is not safe for concurrent use; callers hold the store lock.
type Projector struct {
	ext    string
	inodes map[string]uint64
	next   uint64
}

// NewProjector creates a projector naming notes with the given extension.
func NewProjector(ext string) *Projector {
	return &Projector{
		ext:    ext,
		inodes: make(map[string]uint64),
		next:   firstItemInode,
	}
}

// Ext returns the note file extension.
func (p *Projector) Ext() string { return p.ext }

// Inode returns the inode of an item, assigning the next number the first
// time the item is seen. Numbers are never reused.
func (p *Projector) Inode(uuid string) uint64 {
	if ino, ok := p.inodes[uuid]; ok {
		return ino
	}
	ino := p.next
	p.next++
	p.inodes[uuid] = ino
	return ino
}

// Namespace is one projection of the item set.
type Namespace struct {
	ext   string
	notes map[string]*NoteEntry
	byID  map[string]*NoteEntry
	tags  map[string]*TagEntry
}

// Project builds the namespace for items, which must be in creation order.
func (p *Projector) Project(items []*core.Item) *Namespace {
	ns := &Namespace{
		ext:   p.ext,
		notes: make(map[string]*NoteEntry),
		byID:  make(map[string]*NoteEntry),
		tags:  make(map[string]*TagEntry),
	}

	reserved := map[string]bool{}
	if p.ext == "" {
		reserved = map[string]bool{TagsDir: true, ArchivedDir: true, TrashDir: true}
	}

	var tags []*core.Item
	for _, it := range items {
		if it.Deleted {
			continue
		}
		switch c := it.Content.(type) {
		case *core.NoteContent:
			name := uniqueName(NoteStem(c.Title), p.ext, func(n string) bool {
				_, taken := ns.notes[n]
				return taken || reserved[n]
			})
			e := &NoteEntry{
				Entry:     Entry{Name: name, Inode: p.Inode(it.UUID), Item: it},
				Note:      c,
				Partition: partitionOf(c),
			}
			ns.notes[name] = e
			ns.byID[it.UUID] = e
		case *core.TagContent:
			tags = append(tags, it)
		}
	}

	for _, it := range tags {
		c := it.Content.(*core.TagContent)
		name := uniqueName(TagName(c.Title), "", func(n string) bool {
			_, taken := ns.tags[n]
			return taken
		})
		e := &TagEntry{
			Entry: Entry{Name: name, Inode: p.Inode(it.UUID), Item: it},
			Tag:   c,
		}
		seen := make(map[string]bool)
		for _, ref := range c.References {
			if ref.ContentType != core.ContentTypeNote || seen[ref.UUID] {
				continue
			}
			if note, ok := ns.byID[ref.UUID]; ok {
				seen[ref.UUID] = true
				e.Members = append(e.Members, note)
			}
		}
		ns.tags[name] = e
	}
	return ns
}

func partitionOf(c *core.NoteContent) Partition {
	switch {
	case c.Trashed:
		return PartitionTrash
	case c.Archived():
		return PartitionArchived
	default:
		return PartitionDefault
	}
}

func uniqueName(base, ext string, taken func(string) bool) string {
	name := base + ext
	for n := 1; taken(name); n++ {
		name = base + strconv.Itoa(n) + ext
	}
	return name
}

// NoteStem sanitizes a note title for use as a file name stem.
func NoteStem(title string) string {
	if title == "" {
		title = UntitledName
	}
	return strings.NewReplacer("/", "-", "\x00", "").Replace(title)
}

// TagName sanitizes a tag title for use as a directory name.
func TagName(title string) string {
	if title == "" {
		title = UntitledName
	}
	return strings.NewReplacer("/", "-", " ", "_", "\x00", "").Replace(title)
}

// Note looks up a note by file name in any partition.
func (ns *Namespace) Note(name string) (*NoteEntry, bool) {
	e, ok := ns.notes[name]
	return e, ok
}

// NoteIn looks up a note by file name within one partition.
func (ns *Namespace) NoteIn(p Partition, name string) (*NoteEntry, bool) {
	e, ok := ns.notes[name]
	if !ok || e.Partition != p {
		return nil, false
	}
	return e, true
}

// NoteByUUID returns the projected note for an item id.
func (ns *Namespace) NoteByUUID(uuid string) (*NoteEntry, bool) {
	e, ok := ns.byID[uuid]
	return e, ok
}

// Notes lists the notes of one partition, sorted by name.
func (ns *Namespace) Notes(p Partition) []*NoteEntry {
	var out []*NoteEntry
	for _, e := range ns.notes {
		if e.Partition == p {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out
}

// Tag looks up a tag by directory name.
func (ns *Namespace) Tag(name string) (*TagEntry, bool) {
	e, ok := ns.tags[name]
	return e, ok
}

// Tags lists all tags, sorted by name.
func (ns *Namespace) Tags() []*TagEntry {
	out := make([]*TagEntry, 0, len(ns.tags))
	for _, e := range ns.tags {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *TagEntry) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Member returns the member of a tag with the given file name.
func (t *TagEntry) Member(name string) (*NoteEntry, bool) {
	for _, m := range t.Members {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// TagsOf returns every tag referencing the note.
func (ns *Namespace) TagsOf(noteUUID string) []*TagEntry {
	var out []*TagEntry
	for _, t := range ns.Tags() {
		for _, m := range t.Members {
			if m.UUID() == noteUUID {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Stem strips the note extension from a file name. It reports false when
// the name does not carry the extension or has nothing before it.
func (ns *Namespace) Stem(name string) (string, bool) {
	stem, ok := strings.CutSuffix(name, ns.ext)
	if !ok || stem == "" {
		return "", false
	}
	return stem, true
}

func sortEntries(es []*NoteEntry) {
	slices.SortFunc(es, func(a, b *NoteEntry) int { return strings.Compare(a.Name, b.Name) })
}
