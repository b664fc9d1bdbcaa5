package core

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// AppDataDomain is the appData namespace owned by the reference client.
const AppDataDomain = "org.standardnotes.sn"

// timeLayout matches the millisecond UTC stamps used by other clients.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Content is the decrypted payload of an item.
type Content interface {
	Kind() ContentType
	appData() AppData
	clone() Content
}

// Reference points from one item to another.
type Reference struct {
	UUID        string      `json:"uuid"`
	ContentType ContentType `json:"content_type"`
}

// AppData holds per-client metadata, keyed by client domain.
type AppData map[string]map[string]any

// Archived reports the archived flag.
func (a AppData) Archived() bool {
	v, _ := a[AppDataDomain]["archived"].(bool)
	return v
}

// SetArchived sets the archived flag.
func (a AppData) SetArchived(v bool) {
	a.domain()["archived"] = v
}

// ClientUpdatedAt returns the client modification stamp, if any.
func (a AppData) ClientUpdatedAt() (time.Time, bool) {
	s, ok := a[AppDataDomain]["client_updated_at"].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetClientUpdatedAt records a client modification stamp.
func (a AppData) SetClientUpdatedAt(t time.Time) {
	a.domain()["client_updated_at"] = t.UTC().Format(timeLayout)
}

func (a AppData) domain() map[string]any {
	d, ok := a[AppDataDomain]
	if !ok {
		d = make(map[string]any)
		a[AppDataDomain] = d
	}
	return d
}

func (a AppData) clone() AppData {
	if a == nil {
		return nil
	}
	c := make(AppData, len(a))
	for k, v := range a {
		c[k] = maps.Clone(v)
	}
	return c
}

// NoteContent is the payload of a Note item.
type NoteContent struct {
	Title      string      `json:"title"`
	Text       string      `json:"text"`
	References []Reference `json:"references"`
	AppData    AppData     `json:"appData,omitempty"`
	Trashed    bool        `json:"trashed,omitempty"`

	// Extra carries fields written by other clients.
	Extra map[string]json.RawMessage `json:"-"`
}

func (n *NoteContent) Kind() ContentType { return ContentTypeNote }

// Archived reports whether the note lives in the archive.
func (n *NoteContent) Archived() bool { return n.AppData.Archived() }

// SetArchived flags or unflags the note as archived.
func (n *NoteContent) SetArchived(v bool) {
	if n.AppData == nil {
		n.AppData = AppData{}
	}
	n.AppData.SetArchived(v)
}

func (n *NoteContent) appData() AppData { return n.AppData }

func (n *NoteContent) clone() Content {
	c := *n
	c.References = append([]Reference(nil), n.References...)
	c.AppData = n.AppData.clone()
	c.Extra = maps.Clone(n.Extra)
	return &c
}

var noteKeys = []string{"title", "text", "references", "appData", "trashed"}

func (n NoteContent) MarshalJSON() ([]byte, error) {
	type alias NoteContent
	a := alias(n)
	if a.References == nil {
		a.References = []Reference{}
	}
	return marshalWithExtra(a, n.Extra)
}

func (n *NoteContent) UnmarshalJSON(data []byte) error {
	type alias NoteContent
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := collectExtra(data, noteKeys)
	if err != nil {
		return err
	}
	*n = NoteContent(a)
	n.Extra = extra
	return nil
}

// TagContent is the payload of a Tag item.
type TagContent struct {
	Title      string      `json:"title"`
	References []Reference `json:"references"`
	AppData    AppData     `json:"appData,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (t *TagContent) Kind() ContentType { return ContentTypeTag }

func (t *TagContent) appData() AppData { return t.AppData }

func (t *TagContent) clone() Content {
	c := *t
	c.References = append([]Reference(nil), t.References...)
	c.AppData = t.AppData.clone()
	c.Extra = maps.Clone(t.Extra)
	return &c
}

// HasReference reports whether the tag references uuid.
func (t *TagContent) HasReference(uuid string) bool {
	for _, r := range t.References {
		if r.UUID == uuid {
			return true
		}
	}
	return false
}

// AddReference appends a note reference unless already present.
func (t *TagContent) AddReference(uuid string) bool {
	if t.HasReference(uuid) {
		return false
	}
	t.References = append(t.References, Reference{UUID: uuid, ContentType: ContentTypeNote})
	return true
}

// RemoveReference drops every reference to uuid.
func (t *TagContent) RemoveReference(uuid string) bool {
	kept := t.References[:0]
	for _, r := range t.References {
		if r.UUID != uuid {
			kept = append(kept, r)
		}
	}
	removed := len(kept) != len(t.References)
	t.References = kept
	return removed
}

var tagKeys = []string{"title", "references", "appData"}

func (t TagContent) MarshalJSON() ([]byte, error) {
	type alias TagContent
	a := alias(t)
	if a.References == nil {
		a.References = []Reference{}
	}
	return marshalWithExtra(a, t.Extra)
}

func (t *TagContent) UnmarshalJSON(data []byte) error {
	type alias TagContent
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := collectExtra(data, tagKeys)
	if err != nil {
		return err
	}
	*t = TagContent(a)
	t.Extra = extra
	return nil
}

// OpaqueContent is an item the core does not interpret. The envelope stays
// encrypted and the item is never sent back.
type OpaqueContent struct {
	Type     ContentType
	Envelope string
}

func (o *OpaqueContent) Kind() ContentType { return o.Type }
func (o *OpaqueContent) appData() AppData  { return nil }
func (o *OpaqueContent) clone() Content    { c := *o; return &c }

// NewContent returns an empty payload for a content type.
func NewContent(ct ContentType) Content {
	switch ct {
	case ContentTypeNote:
		return &NoteContent{}
	case ContentTypeTag:
		return &TagContent{}
	default:
		return &OpaqueContent{Type: ct}
	}
}

// DecodeContent parses a decrypted JSON payload.
func DecodeContent(ct ContentType, data []byte) (Content, error) {
	c := NewContent(ct)
	if _, ok := c.(*OpaqueContent); ok {
		return nil, fmt.Errorf("cannot decode content of type %q", ct)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to decode %s content: %w", ct, err)
	}
	return c, nil
}

// EncodeContent serializes a payload for encryption.
func EncodeContent(c Content) ([]byte, error) {
	if _, ok := c.(*OpaqueContent); ok {
		return nil, fmt.Errorf("cannot encode opaque content of type %q", c.Kind())
	}
	return json.Marshal(c)
}

// Stamp records a client modification time on the payload.
func Stamp(c Content, t time.Time) {
	switch v := c.(type) {
	case *NoteContent:
		if v.AppData == nil {
			v.AppData = AppData{}
		}
		v.AppData.SetClientUpdatedAt(t)
	case *TagContent:
		if v.AppData == nil {
			v.AppData = AppData{}
		}
		v.AppData.SetClientUpdatedAt(t)
	}
}

func marshalWithExtra(known any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}

func collectExtra(data []byte, known []string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}
