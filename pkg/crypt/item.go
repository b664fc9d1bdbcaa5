package crypt

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/aretw0/snfs/pkg/core"
)

// itemKeyLen is the per-item key size in bytes: an AES-256 key followed by
// an HMAC key of the same size.
const itemKeyLen = 64

// EncryptItem produces the wire form of item under a fresh item key.
// The server owned updated_at is left out.
func EncryptItem(item *core.Item, keys core.Keys) (core.EncryptedItem, error) {
	enc := core.EncryptedItem{
		UUID:        item.UUID,
		ContentType: item.ContentType,
		CreatedAt:   item.CreatedAt,
		Deleted:     item.Deleted,
	}

	plaintext, err := core.EncodeContent(item.Content)
	if err != nil {
		return enc, err
	}

	raw := make([]byte, itemKeyLen)
	if _, err := rand.Read(raw); err != nil {
		return enc, fmt.Errorf("failed to generate item key: %w", err)
	}
	itemKey := hex.EncodeToString(raw)
	half := len(itemKey) / 2

	enc.Content, err = EncryptEnvelope(plaintext, itemKey[:half], itemKey[half:], item.UUID)
	if err != nil {
		return enc, fmt.Errorf("failed to encrypt content of %s: %w", item.UUID, err)
	}
	enc.EncItemKey, err = EncryptEnvelope([]byte(itemKey), keys.MK, keys.AK, item.UUID)
	if err != nil {
		return enc, fmt.Errorf("failed to wrap item key of %s: %w", item.UUID, err)
	}
	return enc, nil
}

// DecryptItem recovers a store item from its wire form. Deleted items carry
// no content and are returned as metadata only.
func DecryptItem(enc core.EncryptedItem, keys core.Keys) (*core.Item, error) {
	item := &core.Item{
		UUID:        enc.UUID,
		ContentType: enc.ContentType,
		EncItemKey:  enc.EncItemKey,
		AuthHash:    enc.AuthHash,
		CreatedAt:   enc.CreatedAt,
		Deleted:     enc.Deleted,
	}
	if enc.UpdatedAt != nil {
		item.UpdatedAt = *enc.UpdatedAt
	}
	if enc.Deleted {
		return item, nil
	}

	if err := CheckVersion(enc.Content); err != nil {
		return nil, fmt.Errorf("item %s: %w", enc.UUID, err)
	}

	itemKey, err := DecryptEnvelope(enc.EncItemKey, keys.MK, keys.AK, enc.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap item key of %s: %w", enc.UUID, err)
	}
	half := len(itemKey) / 2
	plaintext, err := DecryptEnvelope(enc.Content, string(itemKey[:half]), string(itemKey[half:]), enc.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt content of %s: %w", enc.UUID, err)
	}

	item.Content, err = core.DecodeContent(enc.ContentType, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: item %s: %v", core.ErrMalformedEnvelope, enc.UUID, err)
	}
	return item, nil
}
