package core

import (
	"context"
	"time"
)

// ContentType identifies the kind of payload an item carries.
type ContentType string

const (
	ContentTypeNote ContentType = "Note"
	ContentTypeTag  ContentType = "Tag"
)

// Interpreted reports whether the core decrypts and projects items of this type.
func (c ContentType) Interpreted() bool {
	return c == ContentTypeNote || c == ContentTypeTag
}

// Item is a decrypted record held by the store.
type Item struct {
	UUID        string
	ContentType ContentType
	Content     Content
	EncItemKey  string
	AuthHash    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Deleted     bool
	Dirty       bool
}

// Note returns the note payload, if the item is a note.
func (i *Item) Note() (*NoteContent, bool) {
	n, ok := i.Content.(*NoteContent)
	return n, ok
}

// Tag returns the tag payload, if the item is a tag.
func (i *Item) Tag() (*TagContent, bool) {
	t, ok := i.Content.(*TagContent)
	return t, ok
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	c := *i
	if i.Content != nil {
		c.Content = i.Content.clone()
	}
	if i.AuthHash != nil {
		h := *i.AuthHash
		c.AuthHash = &h
	}
	return &c
}

// ModifiedAt is the best known modification time of the item: the client
// stamp if present, then the server update time, then creation.
func (i *Item) ModifiedAt() time.Time {
	if i.Content != nil {
		if t, ok := i.Content.appData().ClientUpdatedAt(); ok {
			return t
		}
	}
	if !i.UpdatedAt.IsZero() {
		return i.UpdatedAt
	}
	return i.CreatedAt
}

// Keys are the three hex-encoded secrets derived from the account password.
// PW is sent to the server for authentication; MK and AK wrap item keys.
type Keys struct {
	PW string `yaml:"pw"`
	MK string `yaml:"mk"`
	AK string `yaml:"ak"`
}

// EncryptedItem is the wire form of an item.
type EncryptedItem struct {
	UUID        string      `json:"uuid"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content,omitempty"`
	EncItemKey  string      `json:"enc_item_key,omitempty"`
	AuthHash    *string     `json:"auth_hash,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
	Deleted     bool        `json:"deleted,omitempty"`
}

// SyncRequest is one outgoing sync batch.
type SyncRequest struct {
	SyncToken string          `json:"sync_token,omitempty"`
	Items     []EncryptedItem `json:"items"`
}

// SyncResponse is the server reply to a SyncRequest.
type SyncResponse struct {
	SyncToken      string          `json:"sync_token"`
	RetrievedItems []EncryptedItem `json:"retrieved_items"`
	SavedItems     []EncryptedItem `json:"saved_items"`
}

// Transport exchanges sync batches with the server.
type Transport interface {
	Sync(ctx context.Context, req SyncRequest) (*SyncResponse, error)
}
