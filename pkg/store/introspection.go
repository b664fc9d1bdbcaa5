package store

import (
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/snfs/pkg/core"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Items    int        `json:"items"`
	Notes    int        `json:"notes"`
	Tags     int        `json:"tags"`
	Opaque   int        `json:"opaque"`
	Dirty    int        `json:"dirty"`
	HasToken bool       `json:"has_sync_token"`
	Rounds   int        `json:"rounds"`
	LastSync *time.Time `json:"last_sync,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := StoreState{
		Items:    len(s.items),
		HasToken: s.syncToken != "",
		Rounds:   s.rounds,
		LastSync: s.lastSync,
	}
	for _, it := range s.items {
		switch it.ContentType {
		case core.ContentTypeNote:
			st.Notes++
		case core.ContentTypeTag:
			st.Tags++
		default:
			st.Opaque++
		}
		if it.Dirty {
			st.Dirty++
		}
	}
	return st
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "item-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
