// Package storetest provides an in-memory sync server for tests.
package storetest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/snfs/pkg/core"
)

// Server is a core.Transport that behaves like a single-user sync server.
type Server struct {
	mu    sync.Mutex
	items map[string]stored
	clock int

	// Err, when set, is returned by the next Sync calls instead of a response.
	Err error
	// Requests records every request received.
	Requests []core.SyncRequest
}

type stored struct {
	item core.EncryptedItem
	seq  int
}

// NewServer returns an empty server.
func NewServer() *Server {
	return &Server{items: make(map[string]stored)}
}

// Sync implements core.Transport.
func (s *Server) Sync(ctx context.Context, req core.SyncRequest) (*core.SyncResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.Requests = append(s.Requests, req)
	if s.Err != nil {
		return nil, s.Err
	}

	since := 0
	if req.SyncToken != "" {
		since, _ = strconv.Atoi(req.SyncToken)
	}

	resp := &core.SyncResponse{}
	sent := make(map[string]bool)
	for _, it := range req.Items {
		s.clock++
		now := time.Unix(int64(s.clock), 0).UTC()
		it.UpdatedAt = &now
		if prev, ok := s.items[it.UUID]; ok {
			it.CreatedAt = prev.item.CreatedAt
		}
		s.items[it.UUID] = stored{item: it, seq: s.clock}
		sent[it.UUID] = true

		echo := it
		echo.Content = ""
		echo.EncItemKey = ""
		resp.SavedItems = append(resp.SavedItems, echo)
	}

	for uuid, st := range s.items {
		if st.seq > since && !sent[uuid] {
			resp.RetrievedItems = append(resp.RetrievedItems, st.item)
		}
	}

	resp.SyncToken = strconv.Itoa(s.clock)
	return resp, nil
}

// Put stores an item as if another client had uploaded it.
func (s *Server) Put(it core.EncryptedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock++
	now := time.Unix(int64(s.clock), 0).UTC()
	it.UpdatedAt = &now
	s.items[it.UUID] = stored{item: it, seq: s.clock}
}

// Item returns the stored wire form of an item.
func (s *Server) Item(uuid string) (core.EncryptedItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.items[uuid]
	return st.item, ok
}

// Len returns the number of stored items, tombstones included.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// SetErr sets the error returned by subsequent Sync calls.
func (s *Server) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

// RequestCount returns how many sync requests were received.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
