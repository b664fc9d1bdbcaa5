package crypt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/snfs/pkg/core"
)

const testUUID = "8c3b9d4e-5f60-4a7b-9c8d-0e1f2a3b4c5d"

func testKeys() core.Keys {
	return DeriveKeys("correct horse battery staple", SaltFromNonce("user@example.com", Version, 3000, "nonce"), 3000)
}

func TestDeriveKeys(t *testing.T) {
	keys := testKeys()
	for _, k := range []string{keys.PW, keys.MK, keys.AK} {
		assert.Len(t, k, 64)
	}
	assert.NotEqual(t, keys.MK, keys.AK)

	// Derivation is deterministic.
	assert.Equal(t, keys, testKeys())
	assert.NotEqual(t, keys, DeriveKeys("other", "salt", 3000))
}

func TestSaltFromNonce(t *testing.T) {
	salt := SaltFromNonce("user@example.com", "003", 110000, "abc")
	assert.Len(t, salt, 64)
	assert.NotEqual(t, salt, SaltFromNonce("user@example.com", "003", 110000, "abd"))
}

func TestEnvelope(t *testing.T) {
	keys := testKeys()

	t.Run("Round Trip", func(t *testing.T) {
		for _, msg := range []string{"", "a", strings.Repeat("x", 16), "héllo wörld"} {
			env, err := EncryptEnvelope([]byte(msg), keys.MK, keys.AK, testUUID)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(env, "003:"))
			assert.Len(t, strings.Split(env, ":"), 5)

			got, err := DecryptEnvelope(env, keys.MK, keys.AK, testUUID)
			require.NoError(t, err)
			assert.Equal(t, msg, string(got))
		}
	})

	t.Run("Fresh IV", func(t *testing.T) {
		a, _ := EncryptEnvelope([]byte("same"), keys.MK, keys.AK, testUUID)
		b, _ := EncryptEnvelope([]byte("same"), keys.MK, keys.AK, testUUID)
		assert.NotEqual(t, a, b)
	})

	t.Run("Trailing Auth Params", func(t *testing.T) {
		env, err := EncryptEnvelope([]byte("payload"), keys.MK, keys.AK, testUUID)
		require.NoError(t, err)
		got, err := DecryptEnvelope(env+":eyJ2IjoiMDAzIn0=", keys.MK, keys.AK, testUUID)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(got))
	})

	t.Run("UUID Mismatch", func(t *testing.T) {
		env, _ := EncryptEnvelope([]byte("payload"), keys.MK, keys.AK, testUUID)
		_, err := DecryptEnvelope(env, keys.MK, keys.AK, "other-uuid")
		assert.ErrorIs(t, err, core.ErrUUIDMismatch)
	})

	t.Run("Tampered Ciphertext", func(t *testing.T) {
		env, _ := EncryptEnvelope([]byte("payload that spans blocks"), keys.MK, keys.AK, testUUID)
		parts := strings.Split(env, ":")
		ct := []byte(parts[4])
		if ct[0] == 'A' {
			ct[0] = 'B'
		} else {
			ct[0] = 'A'
		}
		parts[4] = string(ct)
		_, err := DecryptEnvelope(strings.Join(parts, ":"), keys.MK, keys.AK, testUUID)
		assert.ErrorIs(t, err, core.ErrTamperDetected)
		assert.True(t, core.IsFatal(err))
	})

	t.Run("Every Bit Flipped", func(t *testing.T) {
		env, err := EncryptEnvelope([]byte("payload that spans blocks"), keys.MK, keys.AK, testUUID)
		require.NoError(t, err)
		parts := strings.Split(env, ":")
		tagStart := len(parts[0]) + 1
		ctStart := len(strings.Join(parts[:4], ":")) + 1

		for _, span := range [][2]int{
			{tagStart, tagStart + len(parts[1])},
			{ctStart, ctStart + len(parts[4])},
		} {
			for i := span[0]; i < span[1]; i++ {
				for bit := range 8 {
					b := []byte(env)
					b[i] ^= 1 << bit
					_, err := DecryptEnvelope(string(b), keys.MK, keys.AK, testUUID)
					assert.ErrorIs(t, err, core.ErrTamperDetected, "byte %d bit %d", i, bit)
				}
			}
		}

		got, err := DecryptEnvelope(env, keys.MK, keys.AK, testUUID)
		require.NoError(t, err)
		assert.Equal(t, "payload that spans blocks", string(got))
	})

	t.Run("Wrong Auth Key", func(t *testing.T) {
		env, _ := EncryptEnvelope([]byte("payload"), keys.MK, keys.AK, testUUID)
		_, err := DecryptEnvelope(env, keys.MK, keys.PW, testUUID)
		assert.ErrorIs(t, err, core.ErrTamperDetected)
	})

	t.Run("Versions", func(t *testing.T) {
		for _, v := range []string{"001", "002"} {
			_, err := DecryptEnvelope(v+":a:b:c:d", keys.MK, keys.AK, testUUID)
			assert.ErrorIs(t, err, core.ErrUnsupportedProtocolVersion, v)
		}
		for _, v := range []string{"004", "", "abc"} {
			_, err := DecryptEnvelope(v+":a:b:c:d", keys.MK, keys.AK, testUUID)
			assert.ErrorIs(t, err, core.ErrInvalidProtocolVersion, v)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := DecryptEnvelope("003:a:b", keys.MK, keys.AK, testUUID)
		assert.ErrorIs(t, err, core.ErrMalformedEnvelope)
	})
}

func TestItemRoundTrip(t *testing.T) {
	keys := testKeys()
	created := time.Date(2023, 5, 4, 10, 0, 0, 0, time.UTC)
	item := &core.Item{
		UUID:        testUUID,
		ContentType: core.ContentTypeNote,
		CreatedAt:   created,
		UpdatedAt:   created.Add(time.Hour),
		Dirty:       true,
		Content:     &core.NoteContent{Title: "Plans", Text: "line one\nline two"},
	}

	enc, err := EncryptItem(item, keys)
	require.NoError(t, err)
	assert.Nil(t, enc.UpdatedAt)
	assert.True(t, strings.HasPrefix(enc.Content, "003:"))
	assert.True(t, strings.HasPrefix(enc.EncItemKey, "003:"))

	// The wrapped item key is 512 bits of hex.
	itemKey, err := DecryptEnvelope(enc.EncItemKey, keys.MK, keys.AK, testUUID)
	require.NoError(t, err)
	assert.Len(t, itemKey, 128)

	got, err := DecryptItem(enc, keys)
	require.NoError(t, err)
	note, ok := got.Note()
	require.True(t, ok)
	assert.Equal(t, "Plans", note.Title)
	assert.Equal(t, "line one\nline two", note.Text)
	assert.Equal(t, created, got.CreatedAt)
	assert.False(t, got.Dirty)

	t.Run("Other Account Keys", func(t *testing.T) {
		_, err := DecryptItem(enc, DeriveKeys("wrong", "salt", 3000))
		assert.ErrorIs(t, err, core.ErrTamperDetected)
	})

	t.Run("Deleted Carries No Content", func(t *testing.T) {
		got, err := DecryptItem(core.EncryptedItem{UUID: testUUID, ContentType: core.ContentTypeNote, Deleted: true}, keys)
		require.NoError(t, err)
		assert.True(t, got.Deleted)
		assert.Nil(t, got.Content)
	})

	t.Run("Legacy Content", func(t *testing.T) {
		legacy := enc
		legacy.Content = "002" + enc.Content[3:]
		_, err := DecryptItem(legacy, keys)
		assert.ErrorIs(t, err, core.ErrUnsupportedProtocolVersion)
	})
}
