package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteContentPreservesUnknownFields(t *testing.T) {
	raw := `{"title":"Groceries","text":"milk","references":[],"preview_plain":"milk","appData":{"org.standardnotes.sn":{"pinned":true}}}`

	c, err := DecodeContent(ContentTypeNote, []byte(raw))
	require.NoError(t, err)
	note := c.(*NoteContent)
	assert.Equal(t, "Groceries", note.Title)
	assert.Contains(t, note.Extra, "preview_plain")

	note.Text = "milk\neggs"
	out, err := EncodeContent(note)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.Equal(t, "milk", fields["preview_plain"])
	assert.Equal(t, "milk\neggs", fields["text"])
	assert.Equal(t, true, fields["appData"].(map[string]any)[AppDataDomain].(map[string]any)["pinned"])
}

func TestNoteContentFlags(t *testing.T) {
	t.Run("Archived", func(t *testing.T) {
		n := &NoteContent{}
		assert.False(t, n.Archived())
		n.SetArchived(true)
		assert.True(t, n.Archived())
	})

	t.Run("Client Stamp", func(t *testing.T) {
		n := &NoteContent{}
		ts := time.Date(2024, 3, 1, 12, 30, 0, 123000000, time.UTC)
		Stamp(n, ts)

		got, ok := n.AppData.ClientUpdatedAt()
		require.True(t, ok)
		assert.True(t, ts.Equal(got))

		item := &Item{Content: n, UpdatedAt: ts.Add(-time.Hour)}
		assert.True(t, ts.Equal(item.ModifiedAt()))
	})

	t.Run("Modified Falls Back", func(t *testing.T) {
		created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		item := &Item{Content: &NoteContent{}, CreatedAt: created}
		assert.Equal(t, created, item.ModifiedAt())
	})
}

func TestTagReferences(t *testing.T) {
	tag := &TagContent{Title: "work"}
	assert.True(t, tag.AddReference("n1"))
	assert.False(t, tag.AddReference("n1"))
	assert.True(t, tag.AddReference("n2"))
	assert.True(t, tag.HasReference("n2"))

	assert.True(t, tag.RemoveReference("n1"))
	assert.False(t, tag.RemoveReference("n1"))
	assert.Equal(t, []Reference{{UUID: "n2", ContentType: ContentTypeNote}}, tag.References)

	out, err := EncodeContent(&TagContent{Title: "empty"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"empty","references":[]}`, string(out))
}

func TestItemCloneIsDeep(t *testing.T) {
	orig := &Item{
		UUID:        "a",
		ContentType: ContentTypeNote,
		Content: &NoteContent{
			Title:      "t",
			References: []Reference{{UUID: "x"}},
			AppData:    AppData{AppDataDomain: {"archived": true}},
		},
	}
	c := orig.Clone()
	note, _ := c.Note()
	note.Title = "changed"
	note.References[0].UUID = "y"
	note.SetArchived(false)

	o, _ := orig.Note()
	assert.Equal(t, "t", o.Title)
	assert.Equal(t, "x", o.References[0].UUID)
	assert.True(t, o.Archived())
}

func TestOpaqueContentIsNotEncoded(t *testing.T) {
	_, err := DecodeContent("SN|Component", []byte(`{}`))
	assert.Error(t, err)
	_, err = EncodeContent(&OpaqueContent{Type: "SN|Component"})
	assert.Error(t, err)
	assert.False(t, ContentType("SN|Component").Interpreted())
}
