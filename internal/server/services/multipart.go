package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filegate/internal/common"
	sc "github.com/dmitrijs2005/filegate/internal/server/config"
	"github.com/dmitrijs2005/filegate/internal/server/storage"
)

// MaxPartNumber is the storage-imposed ceiling on part numbers; S3 and
// compatible backends accept parts 1..10000.
const MaxPartNumber = 10000

// MultipartSession is what a client needs to run a chunked upload: the
// upload id, the derived key, and the part size it should slice with.
//
// The storage-assigned upload id is returned verbatim as the client-visible
// id. No indirection table exists: the id is unguessable, scoped to one key,
// and carrying it in every request is what keeps the gateway stateless.
type MultipartSession struct {
	UploadID string
	Key      string
	PartSize int64
}

// MultipartService coordinates the lifecycle of a chunked upload — open,
// per-part URL issuance, ordered completion, abort — bridging the client's
// requests to storage's native multipart primitives. The service never sees
// part bytes; clients PUT them straight to storage.
type MultipartService struct {
	provider storage.Provider
	quotas   *Quotas
	config   *sc.Config
}

func NewMultipartService(provider storage.Provider, quotas *Quotas, config *sc.Config) *MultipartService {
	return &MultipartService{
		provider: provider,
		quotas:   quotas,
		config:   config,
	}
}

// Create quota-admits declaredSize, derives a key, and opens a native
// multipart upload with storage.
func (s *MultipartService) Create(ctx context.Context, filename string, declaredSize int64, contentType, plan string) (*MultipartSession, error) {
	if err := s.quotas.Admit(declaredSize, plan); err != nil {
		return nil, err
	}

	key := DeriveStorageKey(s.config.KeyPrefix, filename)

	uploadID, err := s.provider.CreateMultipartUpload(ctx, key, contentType)
	if err != nil {
		return nil, err
	}

	return &MultipartSession{
		UploadID: uploadID,
		Key:      key,
		PartSize: s.config.PartSize,
	}, nil
}

// PartURL returns a presigned URL the client uses to PUT exactly one part's
// bytes directly to storage. Part numbers are 1-based and bounded by
// MaxPartNumber.
func (s *MultipartService) PartURL(ctx context.Context, uploadID, key string, partNumber int32) (string, error) {
	if err := validateSession(uploadID, key); err != nil {
		return "", err
	}
	if partNumber < 1 || partNumber > MaxPartNumber {
		return "", fmt.Errorf("%w: part number must be between 1 and %d", common.ErrorValidation, MaxPartNumber)
	}

	return s.provider.SignUploadPart(ctx, uploadID, key, partNumber, s.config.PartURLTTL)
}

// Complete forwards the client's part list to storage's completion primitive
// verbatim. Storage enforces that every part number it was given is present
// and carries the tag it returned; the gateway adds no verification of its
// own. Completion is not idempotent — a second call after success may fail
// or be a no-op depending on the backend, and must not be relied upon.
func (s *MultipartService) Complete(ctx context.Context, uploadID, key string, parts []storage.CompletedPart) (string, error) {
	if err := validateSession(uploadID, key); err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: at least one part is required", common.ErrorValidation)
	}
	for _, part := range parts {
		if part.PartNumber < 1 || part.PartNumber > MaxPartNumber {
			return "", fmt.Errorf("%w: part number %d out of range", common.ErrorValidation, part.PartNumber)
		}
		if part.ETag == "" {
			return "", fmt.Errorf("%w: part %d is missing its tag", common.ErrorValidation, part.PartNumber)
		}
	}

	return s.provider.CompleteMultipartUpload(ctx, uploadID, key, parts)
}

// Abort unconditionally instructs storage to discard all uploaded parts.
// Aborting a session that is already absent — never created, completed, or
// aborted before — is a no-op, not an error.
func (s *MultipartService) Abort(ctx context.Context, uploadID, key string) error {
	if err := validateSession(uploadID, key); err != nil {
		return err
	}

	err := s.provider.AbortMultipartUpload(ctx, uploadID, key)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}

	return err
}

func validateSession(uploadID, key string) error {
	if uploadID == "" {
		return fmt.Errorf("%w: upload id is required", common.ErrorValidation)
	}
	if key == "" {
		return fmt.Errorf("%w: key is required", common.ErrorValidation)
	}
	return nil
}
