package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/aretw0/snfs/pkg/core"
)

// Tx is a handle on a locked store.
type Tx struct {
	s *Store
}

// Items returns every item in creation order.
func (tx *Tx) Items() []*core.Item {
	return tx.s.list()
}

// Get returns a live item.
func (tx *Tx) Get(id string) (*core.Item, error) {
	it, ok := tx.s.items[id]
	if !ok || it.Deleted {
		return nil, fmt.Errorf("item %s: %w", id, core.ErrNotFound)
	}
	return it, nil
}

// Create inserts a new dirty item.
func (tx *Tx) Create(content core.Content) *core.Item {
	now := tx.s.config.Now().UTC()
	it := &core.Item{
		UUID:        uuid.NewString(),
		ContentType: content.Kind(),
		Content:     content,
		CreatedAt:   now,
		Dirty:       true,
	}
	core.Stamp(it.Content, now)
	tx.s.items[it.UUID] = it
	tx.s.gens[it.UUID]++
	tx.s.config.Logger.Debug("created item", "uuid", it.UUID, "type", it.ContentType)
	return it
}

// Mutate applies fn to a live item, then stamps it and marks it dirty.
// If fn fails the item is left untouched.
func (tx *Tx) Mutate(id string, fn func(*core.Item) error) error {
	it, err := tx.Get(id)
	if err != nil {
		return err
	}
	if _, ok := it.Content.(*core.OpaqueContent); ok {
		return fmt.Errorf("item %s: %w", id, core.ErrPermissionDenied)
	}
	draft := it.Clone()
	if err := fn(draft); err != nil {
		return err
	}
	*it = *draft
	tx.markDirty(it)
	return nil
}

// Touch marks an item dirty without changing its payload.
func (tx *Tx) Touch(id string) error {
	return tx.Mutate(id, func(*core.Item) error { return nil })
}

// Tombstone marks an item deleted. It stays in the store until the server
// echoes the deletion.
func (tx *Tx) Tombstone(id string) error {
	return tx.Mutate(id, func(it *core.Item) error {
		it.Deleted = true
		return nil
	})
}

func (tx *Tx) markDirty(it *core.Item) {
	core.Stamp(it.Content, tx.s.config.Now())
	it.Dirty = true
	tx.s.gens[it.UUID]++
}
