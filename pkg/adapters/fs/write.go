package fs

import (
	"fmt"
	"unicode/utf8"

	"github.com/aretw0/snfs/pkg/core"
	"github.com/aretw0/snfs/pkg/namespace"
	"github.com/aretw0/snfs/pkg/store"
)

// Write splices data into a note at off and returns the number of bytes
// written. The resulting text must be valid UTF-8.
func (a *Adapter) Write(p string, data []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%s: negative offset: %w", p, core.ErrPermissionDenied)
	}
	if off > MaxNoteSize || int64(len(data)) > MaxNoteSize-off {
		return 0, fmt.Errorf("%s: %w", p, core.ErrTooLarge)
	}
	err := a.editText(p, func(text []byte) []byte {
		end := off + int64(len(data))
		out := make([]byte, max(int64(len(text)), end))
		copy(out, text)
		copy(out[off:], data)
		return out
	})
	if err != nil {
		return 0, err
	}
	a.writes.Add(1)
	return len(data), nil
}

// Truncate shortens or zero-extends a note to size bytes.
func (a *Adapter) Truncate(p string, size int64) error {
	if size < 0 {
		return fmt.Errorf("%s: negative size: %w", p, core.ErrPermissionDenied)
	}
	if size > MaxNoteSize {
		return fmt.Errorf("%s: %w", p, core.ErrTooLarge)
	}
	return a.editText(p, func(text []byte) []byte {
		out := make([]byte, size)
		copy(out, text)
		return out
	})
}

func (a *Adapter) editText(p string, edit func([]byte) []byte) error {
	var id string
	err := a.update(func(tx *store.Tx, ns *namespace.Namespace) error {
		t, err := a.lookup(ns, p)
		if err != nil {
			return err
		}
		if t.kind.isDir() {
			return fmt.Errorf("%s: %w", p, core.ErrIsDirectory)
		}
		text := edit([]byte(t.note.Note.Text))
		if !utf8.Valid(text) {
			return fmt.Errorf("%s: %w", p, core.ErrEncoding)
		}
		id = t.note.UUID()
		return tx.Mutate(id, func(it *core.Item) error {
			n, _ := it.Note()
			n.Text = string(text)
			return nil
		})
	})
	if err != nil {
		return err
	}
	a.clock.Touch(id, a.config.Now())
	return nil
}

// Create makes an empty note. Notes can be created at the root, where they
// land in the default partition, or inside a tag directory, where they are
// also tagged.
func (a *Adapter) Create(p string) (Attr, error) {
	var attr Attr
	var id string
	err := a.update(func(tx *store.Tx, ns *namespace.Namespace) error {
		loc, err := parsePath(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if loc.kind != kindNote && loc.kind != kindTagNote {
			return fmt.Errorf("%s: %w", p, core.ErrPermissionDenied)
		}
		stem, err := a.noteStem(ns, p, loc.name)
		if err != nil {
			return err
		}
		if _, taken := ns.Note(loc.name); taken {
			return fmt.Errorf("%s: %w", p, core.ErrExists)
		}

		var tag *namespace.TagEntry
		if loc.kind == kindTagNote {
			var ok bool
			if tag, ok = ns.Tag(loc.tag); !ok {
				return fmt.Errorf("%s: %w", p, core.ErrNotFound)
			}
		}

		it := tx.Create(&core.NoteContent{Title: stem})
		id = it.UUID
		if tag != nil {
			if err := tx.Mutate(tag.UUID(), func(tagItem *core.Item) error {
				c, _ := tagItem.Tag()
				c.AddReference(id)
				return nil
			}); err != nil {
				return err
			}
		}

		ns = a.projector.Project(tx.Items())
		created, ok := ns.NoteByUUID(id)
		if !ok {
			return fmt.Errorf("%s: %w", p, core.ErrNotFound)
		}
		attr = a.attr(ns, target{location: loc, note: created})
		return nil
	})
	if err != nil {
		return Attr{}, err
	}
	a.clock.Touch(id, a.config.Now())
	a.creates.Add(1)
	a.config.Logger.Debug("created note", "uuid", id)
	return attr, nil
}

// noteStem validates a note file name and returns the title it stands for.
func (a *Adapter) noteStem(ns *namespace.Namespace, p, name string) (string, error) {
	if a.rejected(name) {
		return "", fmt.Errorf("%s: rejected name: %w", p, core.ErrPermissionDenied)
	}
	stem, ok := ns.Stem(name)
	if !ok {
		return "", fmt.Errorf("%s: missing %q extension: %w", p, a.projector.Ext(), core.ErrPermissionDenied)
	}
	return stem, nil
}

// Touch refreshes a note's modification time. Directories are accepted and
// left alone.
func (a *Adapter) Touch(p string) error {
	var id string
	err := a.update(func(tx *store.Tx, ns *namespace.Namespace) error {
		t, err := a.lookup(ns, p)
		if err != nil {
			return err
		}
		if t.kind.isDir() {
			return nil
		}
		id = t.note.UUID()
		return tx.Touch(id)
	})
	if err != nil || id == "" {
		return err
	}
	a.clock.Touch(id, a.config.Now())
	return nil
}
