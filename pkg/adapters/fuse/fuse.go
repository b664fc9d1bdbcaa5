// Package fuse serves a filesystem adapter through the kernel FUSE
// interface.
package fuse

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"path"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	adapter "github.com/aretw0/snfs/pkg/adapters/fs"
	"github.com/aretw0/snfs/pkg/core"
)

// Options configures a mount.
type Options struct {
	Logger *slog.Logger
	// Timeout is how long the kernel may cache names and attributes.
	// Remote changes take at most this long to show up.
	Timeout    time.Duration
	AllowOther bool
	Debug      bool
}

// Mount serves a at mountpoint. The returned server is already serving;
// Wait on it to block until the filesystem is unmounted.
func Mount(mountpoint string, a *adapter.Adapter, opts Options) (*fuse.Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	negative := time.Duration(0)

	root := &node{adapter: a, logger: opts.Logger}
	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:     "standardnotes",
			Name:       "snfs",
			AllowOther: opts.AllowOther,
			Debug:      opts.Debug,
		},
		EntryTimeout:    &opts.Timeout,
		AttrTimeout:     &opts.Timeout,
		NegativeTimeout: &negative,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mount %s: %w", mountpoint, err)
	}
	return server, nil
}

// node is a file or directory. It carries no state of its own: every call
// resolves the node's current path against the adapter.
type node struct {
	fs.Inode
	adapter *adapter.Adapter
	logger  *slog.Logger
}

var (
	_ fs.InodeEmbedder  = (*node)(nil)
	_ fs.NodeLookuper   = (*node)(nil)
	_ fs.NodeReaddirer  = (*node)(nil)
	_ fs.NodeGetattrer  = (*node)(nil)
	_ fs.NodeSetattrer  = (*node)(nil)
	_ fs.NodeOpener     = (*node)(nil)
	_ fs.NodeReader     = (*node)(nil)
	_ fs.NodeWriter     = (*node)(nil)
	_ fs.NodeFsyncer    = (*node)(nil)
	_ fs.NodeCreater    = (*node)(nil)
	_ fs.NodeMkdirer    = (*node)(nil)
	_ fs.NodeUnlinker   = (*node)(nil)
	_ fs.NodeRmdirer    = (*node)(nil)
	_ fs.NodeRenamer    = (*node)(nil)
	_ fs.NodeAccesser   = (*node)(nil)
	_ fs.NodeReadlinker = (*node)(nil)
	_ fs.NodeSymlinker  = (*node)(nil)
)

func (n *node) path() string {
	return "/" + n.Path(n.Root())
}

func (n *node) child(name string) string {
	return path.Join(n.path(), name)
}

func (n *node) errno(op, p string, err error) syscall.Errno {
	e := Errno(err)
	if e == syscall.EIO {
		n.logger.Error("filesystem operation failed", "op", op, "path", p, "error", err)
	} else if e != 0 {
		n.logger.Debug("filesystem operation refused", "op", op, "path", p, "error", err)
	}
	return e
}

func (n *node) newChild(ctx context.Context, attr adapter.Attr, out *fuse.EntryOut) *fs.Inode {
	fillAttr(&out.Attr, attr)
	mode := uint32(syscall.S_IFREG)
	if attr.IsDir() {
		mode = syscall.S_IFDIR
	}
	return n.NewInode(ctx, &node{adapter: n.adapter, logger: n.logger}, fs.StableAttr{Mode: mode, Ino: attr.Inode})
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := n.child(name)
	attr, err := n.adapter.Stat(p)
	if err != nil {
		return nil, n.errno("lookup", p, err)
	}
	return n.newChild(ctx, attr, out), 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	p := n.path()
	entries, err := n.adapter.Readdir(p)
	if err != nil {
		return nil, n.errno("readdir", p, err)
	}
	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(syscall.S_IFREG)
		if e.IsDir {
			mode = syscall.S_IFDIR
		}
		out = append(out, fuse.DirEntry{Name: e.Name, Ino: e.Inode, Mode: mode})
	}
	return fs.NewListDirStream(out), 0
}

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	p := n.path()
	attr, err := n.adapter.Stat(p)
	if err != nil {
		return n.errno("getattr", p, err)
	}
	fillAttr(&out.Attr, attr)
	return 0
}

func (n *node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	p := n.path()
	if mode, ok := in.GetMode(); ok {
		if err := n.adapter.Chmod(p, iofs.FileMode(mode).Perm()); err != nil {
			return n.errno("chmod", p, err)
		}
	}
	uid, uok := in.GetUID()
	gid, gok := in.GetGID()
	if uok || gok {
		if err := n.adapter.Chown(p, uid, gid); err != nil {
			return n.errno("chown", p, err)
		}
	}
	if size, ok := in.GetSize(); ok {
		if err := n.adapter.Truncate(p, int64(size)); err != nil {
			return n.errno("truncate", p, err)
		}
	}
	if _, ok := in.GetMTime(); ok {
		if err := n.adapter.Touch(p); err != nil {
			return n.errno("utimens", p, err)
		}
	}
	return n.Getattr(ctx, f, out)
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	// Text can change under the kernel after a sync, so bypass the page cache.
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	p := n.path()
	data, err := n.adapter.Read(p, off, len(dest))
	if err != nil {
		return nil, n.errno("read", p, err)
	}
	return fuse.ReadResultData(data), 0
}

func (n *node) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	p := n.path()
	written, err := n.adapter.Write(p, data, off)
	if err != nil {
		return 0, n.errno("write", p, err)
	}
	return uint32(written), 0
}

func (n *node) Fsync(ctx context.Context, f fs.FileHandle, flags uint32) syscall.Errno {
	return 0
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	p := n.child(name)
	attr, err := n.adapter.Create(p)
	if err != nil {
		return nil, nil, 0, n.errno("create", p, err)
	}
	return n.newChild(ctx, attr, out), nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := n.child(name)
	attr, err := n.adapter.Mkdir(p)
	if err != nil {
		return nil, n.errno("mkdir", p, err)
	}
	return n.newChild(ctx, attr, out), 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	p := n.child(name)
	if err := n.adapter.Remove(p); err != nil {
		return n.errno("unlink", p, err)
	}
	return 0
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	p := n.child(name)
	if err := n.adapter.Rmdir(p); err != nil {
		return n.errno("rmdir", p, err)
	}
	return 0
}

func (n *node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	oldPath := n.child(name)
	newPath := path.Join("/"+newParent.EmbeddedInode().Path(n.Root()), newName)
	if err := n.adapter.Rename(oldPath, newPath); err != nil {
		return n.errno("rename", oldPath, err)
	}
	return 0
}

func (n *node) Access(ctx context.Context, mask uint32) syscall.Errno {
	p := n.path()
	if err := n.adapter.Access(p, mask); err != nil {
		return n.errno("access", p, err)
	}
	return 0
}

func (n *node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	p := n.path()
	target, err := n.adapter.Readlink(p)
	if err != nil {
		return nil, n.errno("readlink", p, err)
	}
	return []byte(target), 0
}

func (n *node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := n.child(name)
	return nil, n.errno("symlink", p, n.adapter.Symlink(target, p))
}

func fillAttr(out *fuse.Attr, attr adapter.Attr) {
	out.Ino = attr.Inode
	out.Size = uint64(attr.Size)
	out.Blocks = (out.Size + 511) / 512
	out.Nlink = attr.Nlink
	out.Owner = fuse.Owner{Uid: attr.UID, Gid: attr.GID}
	out.Mode = uint32(attr.Mode.Perm())
	if attr.IsDir() {
		out.Mode |= syscall.S_IFDIR
	} else {
		out.Mode |= syscall.S_IFREG
	}
	out.SetTimes(&attr.Atime, &attr.Mtime, &attr.Ctime)
}

// Errno maps adapter errors onto kernel error numbers.
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, core.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, core.ErrPermissionDenied):
		return syscall.EPERM
	case errors.Is(err, core.ErrExists):
		return syscall.EEXIST
	case errors.Is(err, core.ErrIsDirectory):
		return syscall.EISDIR
	case errors.Is(err, core.ErrNotDirectory):
		return syscall.ENOTDIR
	case errors.Is(err, core.ErrTooLarge):
		return syscall.EFBIG
	default:
		return syscall.EIO
	}
}
