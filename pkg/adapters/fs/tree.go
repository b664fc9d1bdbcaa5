package fs

import (
	"fmt"

	"github.com/aretw0/snfs/pkg/core"
	"github.com/aretw0/snfs/pkg/namespace"
	"github.com/aretw0/snfs/pkg/store"
)

// Remove unlinks a note. Inside a tag directory this untags it; elsewhere
// the first removal moves the note to the trash and a removal from the
// trash deletes it for good.
func (a *Adapter) Remove(p string) error {
	var forget string
	err := a.update(func(tx *store.Tx, ns *namespace.Namespace) error {
		t, err := a.lookup(ns, p)
		if err != nil {
			return err
		}
		switch t.kind {
		case kindTagNote:
			return tx.Mutate(t.tag.UUID(), func(it *core.Item) error {
				c, _ := it.Tag()
				c.RemoveReference(t.note.UUID())
				return nil
			})
		case kindNote, kindArchivedNote:
			return tx.Mutate(t.note.UUID(), func(it *core.Item) error {
				n, _ := it.Note()
				n.Trashed = true
				return nil
			})
		case kindTrashNote:
			forget = t.note.UUID()
			return tx.Tombstone(forget)
		default:
			return fmt.Errorf("%s: %w", p, core.ErrIsDirectory)
		}
	})
	if err != nil {
		return err
	}
	if forget != "" {
		a.clock.Forget(forget)
	}
	a.removes.Add(1)
	return nil
}

// Mkdir creates a tag. Directories exist nowhere else.
func (a *Adapter) Mkdir(p string) (Attr, error) {
	var attr Attr
	err := a.update(func(tx *store.Tx, ns *namespace.Namespace) error {
		loc, err := parsePath(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if loc.kind != kindTag {
			return fmt.Errorf("%s: %w", p, core.ErrPermissionDenied)
		}
		if err := a.checkTagName(p, loc.tag); err != nil {
			return err
		}
		if _, exists := ns.Tag(loc.tag); exists {
			return fmt.Errorf("%s: %w", p, core.ErrExists)
		}

		it := tx.Create(&core.TagContent{Title: loc.tag})
		ns = a.projector.Project(tx.Items())
		for _, tag := range ns.Tags() {
			if tag.UUID() == it.UUID {
				attr = a.attr(ns, target{location: loc, tag: tag})
				return nil
			}
		}
		return fmt.Errorf("%s: %w", p, core.ErrNotFound)
	})
	return attr, err
}

// checkTagName accepts only names that project back onto themselves.
func (a *Adapter) checkTagName(p, name string) error {
	if a.rejected(name) || namespace.TagName(name) != name {
		return fmt.Errorf("%s: unusable tag name: %w", p, core.ErrPermissionDenied)
	}
	return nil
}

// Rmdir deletes a tag. Its notes are left alone.
func (a *Adapter) Rmdir(p string) error {
	return a.update(func(tx *store.Tx, ns *namespace.Namespace) error {
		t, err := a.lookup(ns, p)
		if err != nil {
			return err
		}
		if t.kind != kindTag {
			if t.kind.isNote() {
				return fmt.Errorf("%s: %w", p, core.ErrNotDirectory)
			}
			return fmt.Errorf("%s: %w", p, core.ErrPermissionDenied)
		}
		return tx.Tombstone(t.tag.UUID())
	})
}

// Rename moves or renames a note or a tag.
//
// A note keeps its identity across every rename: changing the file name
// changes its title, moving it between the root, archived and trash changes
// its partition, and moving it into or out of a tag directory tags or
// untags it. A move that crosses a tag directory boundary must keep the
// file name.
func (a *Adapter) Rename(oldPath, newPath string) error {
	var touched string
	err := a.update(func(tx *store.Tx, ns *namespace.Namespace) error {
		src, err := a.lookup(ns, oldPath)
		if err != nil {
			return err
		}
		dst, err := parsePath(newPath)
		if err != nil {
			return fmt.Errorf("%s: %w", newPath, err)
		}
		if src.location == dst {
			return nil
		}

		switch {
		case src.kind == kindTag && dst.kind == kindTag:
			return a.renameTag(tx, ns, src, dst, newPath)
		case src.kind.isNote() && dst.kind.isNote():
			touched = src.note.UUID()
			return a.moveNote(tx, ns, src, dst, newPath)
		default:
			return fmt.Errorf("%s -> %s: %w", oldPath, newPath, core.ErrPermissionDenied)
		}
	})
	if err != nil {
		return err
	}
	if touched != "" {
		a.clock.Touch(touched, a.config.Now())
	}
	a.renames.Add(1)
	return nil
}

func (a *Adapter) renameTag(tx *store.Tx, ns *namespace.Namespace, src target, dst location, newPath string) error {
	if err := a.checkTagName(newPath, dst.tag); err != nil {
		return err
	}
	if _, exists := ns.Tag(dst.tag); exists {
		return fmt.Errorf("%s: %w", newPath, core.ErrExists)
	}
	return tx.Mutate(src.tag.UUID(), func(it *core.Item) error {
		c, _ := it.Tag()
		c.Title = dst.tag
		return nil
	})
}

func (a *Adapter) moveNote(tx *store.Tx, ns *namespace.Namespace, src target, dst location, newPath string) error {
	id := src.note.UUID()
	crossesTag := (src.kind == kindTagNote || dst.kind == kindTagNote) &&
		(src.kind != dst.kind || src.location.tag != dst.tag)
	if crossesTag && src.name != dst.name {
		return fmt.Errorf("%s: renaming across a tag directory: %w", newPath, core.ErrPermissionDenied)
	}

	var stem string
	if src.name != dst.name {
		var err error
		if stem, err = a.noteStem(ns, newPath, dst.name); err != nil {
			return err
		}
		if other, taken := ns.Note(dst.name); taken && other.UUID() != id {
			return fmt.Errorf("%s: %w", newPath, core.ErrExists)
		}
	}

	var dstTag *namespace.TagEntry
	if dst.kind == kindTagNote {
		var ok bool
		if dstTag, ok = ns.Tag(dst.tag); !ok {
			return fmt.Errorf("%s: %w", newPath, core.ErrNotFound)
		}
	}

	if src.kind == kindTagNote && (dstTag == nil || dstTag.UUID() != src.tag.UUID()) {
		if err := tx.Mutate(src.tag.UUID(), func(it *core.Item) error {
			c, _ := it.Tag()
			c.RemoveReference(id)
			return nil
		}); err != nil {
			return err
		}
	}
	if dstTag != nil && !dstTag.Tag.HasReference(id) {
		if err := tx.Mutate(dstTag.UUID(), func(it *core.Item) error {
			c, _ := it.Tag()
			c.AddReference(id)
			return nil
		}); err != nil {
			return err
		}
	}

	movesPartition := src.kind != kindTagNote && dst.kind != kindTagNote && src.kind != dst.kind
	if stem == "" && !movesPartition {
		return nil
	}
	return tx.Mutate(id, func(it *core.Item) error {
		n, _ := it.Note()
		if stem != "" {
			n.Title = stem
		}
		if movesPartition {
			switch dst.kind {
			case kindNote:
				n.Trashed = false
				n.SetArchived(false)
			case kindArchivedNote:
				n.Trashed = false
				n.SetArchived(true)
			case kindTrashNote:
				n.Trashed = true
			}
		}
		return nil
	})
}
