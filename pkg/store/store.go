// Package store holds the decrypted item set and reconciles it with the
// sync server.
package store

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/snfs/pkg/core"
	"github.com/aretw0/snfs/pkg/crypt"
)

// Config holds the store dependencies.
type Config struct {
	Logger *slog.Logger
	// Now is the clock used for client stamps. Defaults to time.Now.
	Now func() time.Time
	// Workers bounds parallel encryption and decryption during a sync round.
	Workers int
}

// Store is the single source of truth for items. One mutex guards the whole
// item set; callers that need a consistent view across several items use
// View or Update.
type Store struct {
	mu        sync.Mutex
	transport core.Transport
	keys      core.Keys
	config    Config

	items     map[string]*core.Item
	gens      map[string]uint64
	syncToken string
	lastSync  *time.Time
	rounds    int
}

// New creates an empty store bound to a transport and account keys.
func New(transport core.Transport, keys core.Keys, config Config) *Store {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	return &Store{
		transport: transport,
		keys:      keys,
		config:    config,
		items:     make(map[string]*core.Item),
		gens:      make(map[string]uint64),
	}
}

// ApplyItems merges decrypted items into the store. With metadataOnly set,
// the payload of existing items is kept and only server metadata is taken.
func (s *Store) ApplyItems(items []*core.Item, metadataOnly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(items, metadataOnly, nil)
}

// apply merges a batch in creation order. When inflight is non-nil, items
// that were dirtied after the outgoing snapshot was taken keep their local
// payload and stay dirty.
func (s *Store) apply(items []*core.Item, metadataOnly bool, inflight map[string]uint64) {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b *core.Item) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.UUID, b.UUID))
	})

	for _, in := range sorted {
		if in.Deleted {
			delete(s.items, in.UUID)
			delete(s.gens, in.UUID)
			continue
		}

		existing, ok := s.items[in.UUID]
		if inflight != nil && ok && existing.Dirty {
			if gen, sent := inflight[in.UUID]; !sent || gen != s.gens[in.UUID] {
				existing.UpdatedAt = in.UpdatedAt
				s.config.Logger.Debug("kept local edit made during sync", "uuid", in.UUID)
				continue
			}
		}

		if metadataOnly {
			if !ok {
				s.config.Logger.Debug("ignored metadata for unknown item", "uuid", in.UUID)
				continue
			}
			existing.ContentType = in.ContentType
			existing.CreatedAt = in.CreatedAt
			existing.UpdatedAt = in.UpdatedAt
			existing.Dirty = false
			continue
		}

		merged := in.Clone()
		merged.Dirty = false
		s.items[in.UUID] = merged
	}
}

// Sync runs one round: send every dirty item, merge what the server returns.
// The lock is not held while talking to the server.
func (s *Store) Sync(ctx context.Context) error {
	s.mu.Lock()
	token := s.syncToken
	inflight := make(map[string]uint64)
	var dirty []*core.Item
	for uuid, it := range s.items {
		if !it.Dirty {
			continue
		}
		c := it.Clone()
		c.Dirty = false
		c.UpdatedAt = time.Time{}
		dirty = append(dirty, c)
		inflight[uuid] = s.gens[uuid]
	}
	s.mu.Unlock()

	outgoing, err := s.encryptAll(ctx, dirty)
	if err != nil {
		return err
	}

	s.config.Logger.Debug("sending sync batch", "items", len(outgoing), "has_token", token != "")
	resp, err := s.transport.Sync(ctx, core.SyncRequest{SyncToken: token, Items: outgoing})
	if err != nil {
		return err
	}
	if resp == nil || resp.SyncToken == "" {
		return fmt.Errorf("%w: response carries no sync token", core.ErrTransport)
	}

	retrieved, err := s.decryptAll(ctx, resp.RetrievedItems)
	if err != nil {
		return err
	}
	saved := make([]*core.Item, 0, len(resp.SavedItems))
	for _, enc := range resp.SavedItems {
		saved = append(saved, metadataItem(enc))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncToken = resp.SyncToken
	s.apply(retrieved, false, inflight)
	s.apply(saved, true, inflight)
	now := s.config.Now()
	s.lastSync = &now
	s.rounds++

	s.config.Logger.Debug("sync round complete",
		"sent", len(outgoing), "retrieved", len(retrieved), "saved", len(saved))
	return nil
}

func (s *Store) encryptAll(ctx context.Context, items []*core.Item) ([]core.EncryptedItem, error) {
	out := make([]core.EncryptedItem, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i, it := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			enc, err := crypt.EncryptItem(it, s.keys)
			if err != nil {
				return err
			}
			out[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) decryptAll(ctx context.Context, encs []core.EncryptedItem) ([]*core.Item, error) {
	out := make([]*core.Item, len(encs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i, enc := range encs {
		if !enc.ContentType.Interpreted() && !enc.Deleted {
			out[i] = opaqueItem(enc)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			it, err := crypt.DecryptItem(enc, s.keys)
			if err != nil {
				return err
			}
			out[i] = it
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func metadataItem(enc core.EncryptedItem) *core.Item {
	it := &core.Item{
		UUID:        enc.UUID,
		ContentType: enc.ContentType,
		CreatedAt:   enc.CreatedAt,
		Deleted:     enc.Deleted,
	}
	if enc.UpdatedAt != nil {
		it.UpdatedAt = *enc.UpdatedAt
	}
	return it
}

func opaqueItem(enc core.EncryptedItem) *core.Item {
	it := metadataItem(enc)
	it.EncItemKey = enc.EncItemKey
	it.AuthHash = enc.AuthHash
	it.Content = &core.OpaqueContent{Type: enc.ContentType, Envelope: enc.Content}
	return it
}

// View runs fn with the store locked. Items must not be retained or modified.
func (s *Store) View(fn func(items []*core.Item) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.list())
}

// Update runs fn with the store locked; all mutations go through tx.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s})
}

// Snapshot returns deep copies of every item.
func (s *Store) Snapshot() []*core.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Item, 0, len(s.items))
	for _, it := range s.list() {
		out = append(out, it.Clone())
	}
	return out
}

// Get returns a copy of one item.
func (s *Store) Get(uuid string) (*core.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[uuid]
	if !ok {
		return nil, false
	}
	return it.Clone(), true
}

// SyncToken returns the last token handed out by the server.
func (s *Store) SyncToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncToken
}

// ModTimes returns the modification time of every live note.
func (s *Store) ModTimes() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time)
	for uuid, it := range s.items {
		if it.ContentType == core.ContentTypeNote && !it.Deleted && it.Content != nil {
			out[uuid] = it.ModifiedAt()
		}
	}
	return out
}

func (s *Store) list() []*core.Item {
	out := make([]*core.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b *core.Item) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.UUID, b.UUID))
	})
	return out
}
