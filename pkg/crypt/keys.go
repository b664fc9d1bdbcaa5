package crypt

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/aretw0/snfs/pkg/core"
)

// derivedKeyLen is the PBKDF2 output length in bytes: three 256-bit keys.
const derivedKeyLen = 96

// DeriveKeys stretches password into the pw/mk/ak triple.
func DeriveKeys(password, salt string, cost int) core.Keys {
	out := hex.EncodeToString(pbkdf2.Key([]byte(password), []byte(salt), cost, derivedKeyLen, sha512.New))
	third := len(out) / 3
	return core.Keys{
		PW: out[:third],
		MK: out[third : 2*third],
		AK: out[2*third:],
	}
}

// SaltFromNonce computes the 003 salt from the server supplied auth params.
func SaltFromNonce(identifier, version string, cost int, nonce string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{identifier, "SF", version, strconv.Itoa(cost), nonce}, ":")))
	return hex.EncodeToString(sum[:])
}
