// Package crypt implements the 003 item encryption scheme.
//
// Account keys come from PBKDF2-HMAC-SHA512 over the password. Every item is
// encrypted under its own random key, and that key is in turn encrypted
// under the account keys. Both layers use the same envelope:
//
//	003:<hmac hex>:<uuid>:<iv hex>:<base64 AES-256-CBC ciphertext>
//
// The HMAC-SHA256 over "003:<uuid>:<iv hex>:<ciphertext>" is verified before
// anything is decrypted.
package crypt
