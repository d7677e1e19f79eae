// Package storage abstracts where uploaded files (profile pictures) live.
//
// Two backends: local disk for single-server deployments, and any
// S3-compatible object store. The service layer only sees UploadStore, so
// switching backends is a wiring change in main.
package storage

import (
	"context"
	"io"
)

// UploadStore persists uploaded files and returns a URL the client can
// load them from. Local storage returns relative paths (/uploads/...),
// object storage returns absolute URLs.
type UploadStore interface {
	// Save writes the file under key and returns its public URL.
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)

	// Delete removes one stored file. Deleting a missing key is not an
	// error — callers use it for best-effort cleanup of replaced pictures.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every stored file whose key starts with prefix.
	// Used by account deletion: all of a user's uploads share their user-ID
	// prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
