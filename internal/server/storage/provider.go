// Package storage abstracts the object-storage capability provider behind
// a small interface so the gateway services never depend on a concrete
// backend. Implementations translate backend-specific failures into the
// sentinel errors of internal/common at this boundary.
package storage

import (
	"context"
	"io"
	"time"
)

// CompletedPart pairs a 1-based part number with the tag storage returned
// when that part was uploaded. The tag must be supplied verbatim at
// completion to prove which bytes were received.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// ObjectInfo describes a stored object without its payload.
type ObjectInfo struct {
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Provider is the set of object-storage operations the gateway relies on.
//
// All methods are potentially blocking I/O and honor ctx cancellation.
// Errors are reported through the internal/common taxonomy:
// ErrorNotFound, ErrorUnauthorized, ErrorForbidden, ErrorTransient.
type Provider interface {
	// SignPut returns a presigned URL for a single PUT of key.
	SignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// SignGet returns a presigned URL for a single GET of key.
	SignGet(ctx context.Context, key string, ttl time.Duration) (string, error)

	// CreateMultipartUpload opens a native multipart upload and returns the
	// storage-assigned upload id.
	CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error)

	// SignUploadPart returns a presigned URL for uploading one part.
	SignUploadPart(ctx context.Context, uploadID, key string, partNumber int32, ttl time.Duration) (string, error)

	// CompleteMultipartUpload finalizes the object from the supplied parts
	// and returns the object location. Storage enforces that the part set is
	// gapless and every tag matches; the gateway adds no verification of its
	// own.
	CompleteMultipartUpload(ctx context.Context, uploadID, key string, parts []CompletedPart) (string, error)

	// AbortMultipartUpload discards all uploaded parts of the session.
	AbortMultipartUpload(ctx context.Context, uploadID, key string) error

	// GetObject opens a streaming read of key. The caller must close the
	// returned reader.
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)

	// HeadObject returns object metadata without fetching the payload.
	HeadObject(ctx context.Context, key string) (ObjectInfo, error)
}
