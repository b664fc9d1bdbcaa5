package fs

import (
	"path"
	"strings"

	"github.com/aretw0/snfs/pkg/core"
	"github.com/aretw0/snfs/pkg/namespace"
)

type kind int

const (
	kindRoot kind = iota
	kindTags
	kindTag
	kindTagNote
	kindArchived
	kindArchivedNote
	kindTrash
	kindTrashNote
	kindNote
)

func (k kind) isDir() bool {
	switch k {
	case kindRoot, kindTags, kindTag, kindArchived, kindTrash:
		return true
	}
	return false
}

func (k kind) isNote() bool { return !k.isDir() }

// location is a parsed path. It says nothing about whether the target exists.
type location struct {
	kind kind
	tag  string
	name string
}

func parsePath(p string) (location, error) {
	p = path.Clean("/" + p)
	if p == "/" {
		return location{kind: kindRoot}, nil
	}
	parts := strings.Split(p[1:], "/")

	switch len(parts) {
	case 1:
		switch parts[0] {
		case namespace.TagsDir:
			return location{kind: kindTags}, nil
		case namespace.ArchivedDir:
			return location{kind: kindArchived}, nil
		case namespace.TrashDir:
			return location{kind: kindTrash}, nil
		}
		return location{kind: kindNote, name: parts[0]}, nil
	case 2:
		switch parts[0] {
		case namespace.TagsDir:
			return location{kind: kindTag, tag: parts[1]}, nil
		case namespace.ArchivedDir:
			return location{kind: kindArchivedNote, name: parts[1]}, nil
		case namespace.TrashDir:
			return location{kind: kindTrashNote, name: parts[1]}, nil
		}
	case 3:
		if parts[0] == namespace.TagsDir {
			return location{kind: kindTagNote, tag: parts[1], name: parts[2]}, nil
		}
	}
	return location{}, core.ErrNotFound
}

// target is a location resolved against one projection.
type target struct {
	location
	note *namespace.NoteEntry
	tag  *namespace.TagEntry
}

func resolve(ns *namespace.Namespace, loc location) (target, error) {
	t := target{location: loc}
	var ok bool
	switch loc.kind {
	case kindRoot, kindTags, kindArchived, kindTrash:
		return t, nil
	case kindTag:
		t.tag, ok = ns.Tag(loc.tag)
	case kindTagNote:
		if t.tag, ok = ns.Tag(loc.tag); ok {
			t.note, ok = t.tag.Member(loc.name)
		}
	case kindArchivedNote:
		t.note, ok = ns.NoteIn(namespace.PartitionArchived, loc.name)
	case kindTrashNote:
		t.note, ok = ns.NoteIn(namespace.PartitionTrash, loc.name)
	case kindNote:
		t.note, ok = ns.NoteIn(namespace.PartitionDefault, loc.name)
	}
	if !ok {
		return t, core.ErrNotFound
	}
	return t, nil
}

func (t target) inode() uint64 {
	switch t.kind {
	case kindRoot:
		return namespace.RootInode
	case kindTags:
		return namespace.TagsInode
	case kindArchived:
		return namespace.ArchivedInode
	case kindTrash:
		return namespace.TrashInode
	case kindTag:
		return t.tag.Inode
	default:
		return t.note.Inode
	}
}
