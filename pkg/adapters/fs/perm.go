package fs

import (
	"fmt"
	"io/fs"

	"github.com/aretw0/snfs/pkg/core"
	"github.com/aretw0/snfs/pkg/namespace"
)

// ExecuteAccess is the execute bit of an access(2) mask.
const ExecuteAccess = 0x1

// Chmod accepts only the mode a path already has.
func (a *Adapter) Chmod(p string, mode fs.FileMode) error {
	return a.view(func(ns *namespace.Namespace) error {
		t, err := a.lookup(ns, p)
		if err != nil {
			return err
		}
		want := FilePerm
		if t.kind.isDir() {
			want = DirPerm
		}
		if mode.Perm() != want {
			return fmt.Errorf("%s: mode %v: %w", p, mode.Perm(), core.ErrPermissionDenied)
		}
		return nil
	})
}

// Chown is never permitted.
func (a *Adapter) Chown(p string, uid, gid uint32) error {
	return a.view(func(ns *namespace.Namespace) error {
		if _, err := a.lookup(ns, p); err != nil {
			return err
		}
		return fmt.Errorf("%s: %w", p, core.ErrPermissionDenied)
	})
}

// Access checks an access(2) mask. Notes are never executable.
func (a *Adapter) Access(p string, mask uint32) error {
	return a.view(func(ns *namespace.Namespace) error {
		t, err := a.lookup(ns, p)
		if err != nil {
			return err
		}
		if t.kind.isNote() && mask&ExecuteAccess != 0 {
			return fmt.Errorf("%s: %w", p, core.ErrPermissionDenied)
		}
		return nil
	})
}

// Symlink is not supported; nothing is created.
func (a *Adapter) Symlink(target, p string) error {
	return fmt.Errorf("%s: symlinks: %w", p, core.ErrPermissionDenied)
}

// Readlink has nothing to report since no links exist.
func (a *Adapter) Readlink(p string) (string, error) {
	return "", nil
}
