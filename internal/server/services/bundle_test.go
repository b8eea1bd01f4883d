package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filegate/internal/common"
	"github.com/dmitrijs2005/filegate/internal/logging"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newBundleService(t *testing.T, skipMissing bool) (*BundleService, *fakeProvider) {
	t.Helper()
	cfg := testConfig()
	cfg.BundleSkipMissing = skipMissing
	provider := newFakeProvider()
	return NewBundleService(provider, cfg, discardLogger()), provider
}

func storeManifest(t *testing.T, provider *fakeProvider, key string, m BundleManifest) {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	provider.objects[key] = data
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	members := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		members[f.Name] = string(content)
	}
	return members
}

func TestBundleService_Manifest(t *testing.T) {
	svc, provider := newBundleService(t, true)
	ctx := context.Background()

	storeManifest(t, provider, "manifests/m1.json", BundleManifest{
		Name:  "holiday photos",
		Files: []BundleEntry{{Key: "a"}, {Key: "b"}},
	})

	m, err := svc.Manifest(ctx, "manifests/m1.json")
	require.NoError(t, err)
	assert.Len(t, m.Files, 2)
	assert.Equal(t, "holiday_photos.zip", m.ArchiveName())
}

func TestBundleService_Manifest_Errors(t *testing.T) {
	svc, provider := newBundleService(t, true)
	ctx := context.Background()

	_, err := svc.Manifest(ctx, "")
	assert.ErrorIs(t, err, common.ErrorValidation, "empty key")

	_, err = svc.Manifest(ctx, "manifests/absent.json")
	assert.ErrorIs(t, err, common.ErrorNotFound, "absent manifest")

	provider.objects["manifests/garbage.json"] = []byte("{not json")
	_, err = svc.Manifest(ctx, "manifests/garbage.json")
	assert.ErrorIs(t, err, common.ErrorValidation, "malformed manifest")

	storeManifest(t, provider, "manifests/empty.json", BundleManifest{Name: "empty"})
	_, err = svc.Manifest(ctx, "manifests/empty.json")
	assert.ErrorIs(t, err, common.ErrorValidation, "empty manifest must fail before any bytes are streamed")
}

func TestBundleService_Stream_MissingMemberSkipped(t *testing.T) {
	svc, provider := newBundleService(t, true)
	ctx := context.Background()

	provider.objects["objects/one"] = []byte("first body")
	m := &BundleManifest{Files: []BundleEntry{
		{Key: "objects/one", Name: "one.txt"},
		{Key: "objects/two-absent", Name: "two.txt"},
	}}

	var buf bytes.Buffer
	require.NoError(t, svc.Stream(ctx, m, &buf), "a missing member must not fail the archive")

	members := readArchive(t, buf.Bytes())
	assert.Equal(t, map[string]string{"one.txt": "first body"}, members)
}

func TestBundleService_Stream_MissingMemberFailsWhenPolicyOff(t *testing.T) {
	svc, provider := newBundleService(t, false)
	ctx := context.Background()

	provider.objects["objects/one"] = []byte("first body")
	m := &BundleManifest{Files: []BundleEntry{
		{Key: "objects/one"},
		{Key: "objects/two-absent"},
	}}

	var buf bytes.Buffer
	assert.ErrorIs(t, svc.Stream(ctx, m, &buf), common.ErrorNotFound)
}

func TestBundleService_Stream_TransientFailureAborts(t *testing.T) {
	// A skip policy covers "object not found" only; an unreachable backend
	// must end the stream even with skipping enabled.
	svc, provider := newBundleService(t, true)
	ctx := context.Background()

	provider.objects["objects/one"] = []byte("first body")
	provider.getErr["objects/flaky"] = fmt.Errorf("%w: connection reset", common.ErrorTransient)
	m := &BundleManifest{Files: []BundleEntry{
		{Key: "objects/one"},
		{Key: "objects/flaky"},
	}}

	var buf bytes.Buffer
	assert.ErrorIs(t, svc.Stream(ctx, m, &buf), common.ErrorTransient)
}

func TestBundleService_Stream_ManifestOrderPreserved(t *testing.T) {
	svc, provider := newBundleService(t, true)
	ctx := context.Background()

	provider.objects["k/c"] = []byte("c")
	provider.objects["k/a"] = []byte("a")
	provider.objects["k/b"] = []byte("b")
	m := &BundleManifest{Files: []BundleEntry{
		{Key: "k/c"}, {Key: "k/a"}, {Key: "k/b"},
	}}

	var buf bytes.Buffer
	require.NoError(t, svc.Stream(ctx, m, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestBundleService_Stream_NameFallsBackToKeySegment(t *testing.T) {
	svc, provider := newBundleService(t, true)
	ctx := context.Background()

	provider.objects["uploads/2026/01/02/uuid/invoice.pdf"] = []byte("pdf")
	provider.objects["weird"] = []byte("x")
	m := &BundleManifest{Files: []BundleEntry{
		{Key: "uploads/2026/01/02/uuid/invoice.pdf"},
		{Key: "weird", Name: "../../evil"},
	}}

	var buf bytes.Buffer
	require.NoError(t, svc.Stream(ctx, m, &buf))

	members := readArchive(t, buf.Bytes())
	assert.Contains(t, members, "invoice.pdf")
	assert.Contains(t, members, "evil", "relative path components must be stripped from member names")
}

// zeroReader yields an endless run of zero bytes.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// streamingProvider serves one synthetic member of the given size without
// ever holding its bytes in memory.
type streamingProvider struct {
	*fakeProvider
	key  string
	size int64
}

func (p *streamingProvider) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == p.key {
		return io.NopCloser(io.LimitReader(zeroReader{}, p.size)), nil
	}
	return p.fakeProvider.GetObject(ctx, key)
}

// heapSamplingWriter discards the archive bytes and records the peak heap
// observed while they were being produced.
type heapSamplingWriter struct {
	written  int64
	peakHeap uint64
}

func (w *heapSamplingWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.HeapAlloc > w.peakHeap {
		w.peakHeap = ms.HeapAlloc
	}
	return len(p), nil
}

func TestBundleService_Stream_ConstantMemory(t *testing.T) {
	if testing.Short() {
		t.Skip("streams half a gigabyte")
	}

	const memberSize = 512 << 20
	const heapBound = 64 << 20

	runtime.GC()
	var base runtime.MemStats
	runtime.ReadMemStats(&base)

	cfg := testConfig()
	provider := &streamingProvider{
		fakeProvider: newFakeProvider(),
		key:          "objects/huge.bin",
		size:         memberSize,
	}
	svc := NewBundleService(provider, cfg, discardLogger())

	m := &BundleManifest{Files: []BundleEntry{{Key: "objects/huge.bin", Name: "huge.bin"}}}

	w := &heapSamplingWriter{}
	require.NoError(t, svc.Stream(context.Background(), m, w))

	assert.Positive(t, w.written)
	assert.Less(t, w.written, int64(memberSize),
		"compressed archive must be smaller than the raw member")
	assert.Less(t, w.peakHeap, base.HeapAlloc+uint64(heapBound),
		"heap while streaming a %d MiB member must stay near the copy-buffer constant", memberSize>>20)
}

// blockedReader never yields data; it unblocks only when its context ends.
type blockedReader struct {
	ctx context.Context
}

func (r *blockedReader) Read(p []byte) (int, error) {
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

func (r *blockedReader) Close() error { return nil }

type stallingProvider struct {
	*fakeProvider
	key string
}

func (p *stallingProvider) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == p.key {
		return &blockedReader{ctx: ctx}, nil
	}
	return p.fakeProvider.GetObject(ctx, key)
}

func TestBundleService_Stream_CancelMidMember(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &stallingProvider{fakeProvider: newFakeProvider(), key: "objects/stalled"}
	provider.objects["objects/first"] = []byte("first body")
	svc := NewBundleService(provider, testConfig(), discardLogger())

	m := &BundleManifest{Files: []BundleEntry{
		{Key: "objects/first"},
		{Key: "objects/stalled"},
	}}

	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	var buf bytes.Buffer
	err := svc.Stream(ctx, m, &buf)

	require.ErrorIs(t, err, context.Canceled,
		"a stalled member read must end with the caller's cancellation")
	assert.Less(t, time.Since(start), 5*time.Second)
}

// cancelAfterProvider cancels the stream's context right after serving the
// named key, emulating a client that disconnects between members.
type cancelAfterProvider struct {
	*fakeProvider
	cancel  context.CancelFunc
	after   string
	fetched []string
}

func (p *cancelAfterProvider) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	p.fetched = append(p.fetched, key)
	rc, err := p.fakeProvider.GetObject(ctx, key)
	if key == p.after {
		p.cancel()
	}
	return rc, err
}

func TestBundleService_Stream_CancelBetweenMembers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &cancelAfterProvider{fakeProvider: newFakeProvider(), cancel: cancel, after: "k/first"}
	provider.objects["k/first"] = []byte("first")
	provider.objects["k/second"] = []byte("second")
	svc := NewBundleService(provider, testConfig(), discardLogger())

	m := &BundleManifest{Files: []BundleEntry{
		{Key: "k/first"},
		{Key: "k/second"},
	}}

	var buf bytes.Buffer
	err := svc.Stream(ctx, m, &buf)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"k/first"}, provider.fetched,
		"no member may be fetched once the client is gone")
}

func TestBundleManifest_ArchiveName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: "bundle.zip"},
		{name: "plain", in: "photos", want: "photos.zip"},
		{name: "already zip", in: "photos.zip", want: "photos.zip"},
		{name: "hostile", in: "../x/y", want: "y.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &BundleManifest{Name: tt.in}
			assert.Equal(t, tt.want, m.ArchiveName())
		})
	}
}
