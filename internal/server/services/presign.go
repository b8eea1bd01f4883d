package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filegate/internal/common"
	sc "github.com/dmitrijs2005/filegate/internal/server/config"
	"github.com/dmitrijs2005/filegate/internal/server/storage"
)

// PresignedTransfer is the result of a single-shot upload intent: a derived
// key and a time-boxed URL for one direct PUT against storage.
//
// Single use is expected but not enforced — the signature itself is the only
// access control, and the URL is never revoked before expiry.
type PresignedTransfer struct {
	Key       string
	URL       string
	ExpiresIn time.Duration
}

// PresignService issues presigned PUT/GET URLs after quota admission and key
// derivation. No object is created until the client performs the actual
// transfer against the signed URL.
type PresignService struct {
	provider storage.Provider
	quotas   *Quotas
	config   *sc.Config
}

func NewPresignService(provider storage.Provider, quotas *Quotas, config *sc.Config) *PresignService {
	return &PresignService{
		provider: provider,
		quotas:   quotas,
		config:   config,
	}
}

// IssuePut admits declaredSize against the caller's plan, derives a fresh
// storage key from filename, and returns a presigned PUT transfer with the
// configured TTL.
func (s *PresignService) IssuePut(ctx context.Context, filename string, declaredSize int64, contentType, plan string) (*PresignedTransfer, error) {
	if err := s.quotas.Admit(declaredSize, plan); err != nil {
		return nil, err
	}

	key := DeriveStorageKey(s.config.KeyPrefix, filename)

	url, err := s.provider.SignPut(ctx, key, contentType, s.config.PresignTTL)
	if err != nil {
		return nil, err
	}

	return &PresignedTransfer{
		Key:       key,
		URL:       url,
		ExpiresIn: s.config.PresignTTL,
	}, nil
}

// IssueGet returns a presigned GET URL for an existing key with the
// configured TTL.
func (s *PresignService) IssueGet(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: key is required", common.ErrorValidation)
	}

	return s.provider.SignGet(ctx, key, s.config.PresignTTL)
}
