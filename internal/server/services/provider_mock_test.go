package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/filegate/internal/common"
	sc "github.com/dmitrijs2005/filegate/internal/server/config"
	"github.com/dmitrijs2005/filegate/internal/server/storage"
)

func testConfig() *sc.Config {
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	return cfg
}

// fakeProvider emulates the storage capability provider in memory: presigned
// URLs are deterministic strings, multipart sessions track the parts the
// "storage" has seen, and objects live in a map. Completion enforces the
// same gapless-part/tag-match rule a real backend would.
type fakeProvider struct {
	objects map[string][]byte

	// uploadID -> partNumber -> etag issued by "storage"
	sessions map[string]map[int32]string

	// per-key GetObject failures, e.g. to simulate a transient outage
	getErr map[string]error

	lastTTL         time.Duration
	lastContentType string

	failWith error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		objects:  map[string][]byte{},
		sessions: map[string]map[int32]string{},
		getErr:   map[string]error{},
	}
}

func (f *fakeProvider) SignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.lastTTL = ttl
	f.lastContentType = contentType
	return "https://storage.test/put/" + key, nil
}

func (f *fakeProvider) SignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.lastTTL = ttl
	return "https://storage.test/get/" + key, nil
}

func (f *fakeProvider) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	f.lastContentType = contentType
	id := fmt.Sprintf("upload-%d", len(f.sessions)+1)
	f.sessions[id] = map[int32]string{}
	return id, nil
}

func (f *fakeProvider) SignUploadPart(ctx context.Context, uploadID, key string, partNumber int32, ttl time.Duration) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	parts, ok := f.sessions[uploadID]
	if !ok {
		return "", fmt.Errorf("%w: no such upload", common.ErrorNotFound)
	}
	f.lastTTL = ttl

	// Signing a part URL is also when our fake "receives" the part.
	etag := fmt.Sprintf("etag-%d", partNumber)
	parts[partNumber] = etag
	return fmt.Sprintf("https://storage.test/part/%s/%d", key, partNumber), nil
}

func (f *fakeProvider) CompleteMultipartUpload(ctx context.Context, uploadID, key string, supplied []storage.CompletedPart) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	parts, ok := f.sessions[uploadID]
	if !ok {
		return "", fmt.Errorf("%w: no such upload", common.ErrorNotFound)
	}

	byNumber := map[int32]string{}
	for _, p := range supplied {
		byNumber[p.PartNumber] = p.ETag
	}
	for number, etag := range parts {
		if byNumber[number] != etag {
			return "", fmt.Errorf("%w: part %d missing or tag mismatch", common.ErrorValidation, number)
		}
	}

	delete(f.sessions, uploadID)
	f.objects[key] = []byte("assembled")
	return "https://storage.test/" + key, nil
}

func (f *fakeProvider) AbortMultipartUpload(ctx context.Context, uploadID, key string) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.sessions[uploadID]; !ok {
		return fmt.Errorf("%w: no such upload", common.ErrorNotFound)
	}
	delete(f.sessions, uploadID)
	return nil
}

func (f *fakeProvider) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if err, ok := f.getErr[key]; ok {
		return nil, err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: no such key %s", common.ErrorNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeProvider) HeadObject(ctx context.Context, key string) (storage.ObjectInfo, error) {
	if f.failWith != nil {
		return storage.ObjectInfo{}, f.failWith
	}
	data, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, fmt.Errorf("%w: no such key %s", common.ErrorNotFound, key)
	}
	return storage.ObjectInfo{Size: int64(len(data))}, nil
}
