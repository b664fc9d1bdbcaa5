package core

import "errors"

// Crypto and protocol errors. These are fatal: a sync round that hits one
// must not continue.
var (
	ErrUnsupportedProtocolVersion = errors.New("unsupported protocol version")
	ErrInvalidProtocolVersion     = errors.New("invalid protocol version")
	ErrUUIDMismatch               = errors.New("uuid mismatch between envelope and item")
	ErrTamperDetected             = errors.New("authentication hash mismatch, data may have been tampered with")
	ErrMalformedEnvelope          = errors.New("malformed encrypted envelope")
)

// Filesystem facing errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrEncoding         = errors.New("text is not valid utf-8")
	ErrExists           = errors.New("already exists")
	ErrIsDirectory      = errors.New("is a directory")
	ErrNotDirectory     = errors.New("not a directory")
	ErrTooLarge         = errors.New("file too large")
)

// Transport errors. ErrOffline is the connectivity subset of ErrTransport:
// anything wrapping it is retried on the next scheduled round.
var (
	ErrTransport   = errors.New("sync transport failure")
	ErrOffline     = errors.New("sync server unreachable")
	ErrMFARequired = errors.New("multi-factor authentication required")
)

// IsFatal reports whether err is a crypto or protocol failure.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnsupportedProtocolVersion) ||
		errors.Is(err, ErrInvalidProtocolVersion) ||
		errors.Is(err, ErrUUIDMismatch) ||
		errors.Is(err, ErrTamperDetected) ||
		errors.Is(err, ErrMalformedEnvelope)
}
