package services

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/filegate/internal/common"
	"github.com/dmitrijs2005/filegate/internal/logging"
	sc "github.com/dmitrijs2005/filegate/internal/server/config"
	"github.com/dmitrijs2005/filegate/internal/server/storage"
)

// Manifests are small JSON objects; anything bigger is not a manifest.
const maxManifestSize = 1 << 20

// BundleEntry names one stored object to include in an archive. Name is the
// display name inside the archive; when empty, the key's final path segment
// is used.
type BundleEntry struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// BundleManifest is the read-only input of bundle assembly: an ordered list
// of members and an optional archive name. It is stored in object storage
// like any other object and fetched at stream time; entries are resolved
// lazily, member by member, during assembly.
type BundleManifest struct {
	Name  string        `json:"name,omitempty"`
	Files []BundleEntry `json:"files"`
}

// ArchiveName returns a sanitized download filename for the archive,
// defaulting to "bundle.zip".
func (m *BundleManifest) ArchiveName() string {
	name := SanitizeFileName(m.Name)
	if name == DefaultFileName && m.Name == "" {
		name = "bundle"
	}
	name = strings.TrimSuffix(name, ".zip")
	return name + ".zip"
}

// BundleService streams several stored objects through a compressing archive
// writer directly into a response sink, in manifest order, without
// materializing any member or the whole archive in memory.
type BundleService struct {
	provider    storage.Provider
	skipMissing bool
	logger      logging.Logger
}

func NewBundleService(provider storage.Provider, config *sc.Config, logger logging.Logger) *BundleService {
	return &BundleService{
		provider:    provider,
		skipMissing: config.BundleSkipMissing,
		logger:      logger.With("module", "bundle"),
	}
}

// Manifest fetches and parses the manifest object. An absent manifest maps
// to ErrorNotFound, an empty member list to ErrorValidation — both surface
// before any archive bytes are written, which is why manifest loading is
// separate from Stream: response headers can still change at this point.
func (s *BundleService) Manifest(ctx context.Context, manifestKey string) (*BundleManifest, error) {
	if manifestKey == "" {
		return nil, fmt.Errorf("%w: manifest key is required", common.ErrorValidation)
	}

	rc, err := s.provider.GetObject(ctx, manifestKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	m := &BundleManifest{}
	if err := json.NewDecoder(io.LimitReader(rc, maxManifestSize)).Decode(m); err != nil {
		return nil, fmt.Errorf("%w: malformed manifest: %v", common.ErrorValidation, err)
	}

	if len(m.Files) == 0 {
		return nil, fmt.Errorf("%w: manifest names no files", common.ErrorValidation)
	}

	return m, nil
}

// Stream writes all manifest members into w as one zip archive, strictly in
// manifest order. Members are fetched sequentially; each one's bytes are
// fully written before the next fetch starts, and backpressure from w is
// what paces the reads — peak memory is one copy buffer, never a whole
// member.
//
// A member that storage reports as absent is skipped (or, when the skip
// policy is off, ends the stream); any other fetch or copy failure ends the
// stream. Cancelling ctx ends it promptly too: the in-flight member read
// observes ctx through the provider, and no further members are fetched.
// Either way the response status is already on the wire, so a mid-stream
// failure can only be signaled by truncating the archive — callers must
// treat an abruptly closed archive as an error.
func (s *BundleService) Stream(ctx context.Context, m *BundleManifest, w io.Writer) error {
	zw := zip.NewWriter(w)

	for _, entry := range m.Files {
		// A disconnected client cancels ctx; stop before fetching the next
		// member rather than draining the rest of the manifest into a dead
		// connection.
		if err := ctx.Err(); err != nil {
			return err
		}

		rc, err := s.provider.GetObject(ctx, entry.Key)
		if errors.Is(err, common.ErrorNotFound) {
			if s.skipMissing {
				s.logger.Warn(ctx, "skipping missing bundle member", "key", entry.Key)
				continue
			}
			return err
		}
		if err != nil {
			return err
		}

		if err := s.appendMember(zw, entry, rc); err != nil {
			return err
		}
	}

	return zw.Close()
}

func (s *BundleService) appendMember(zw *zip.Writer, entry BundleEntry, rc io.ReadCloser) error {
	defer rc.Close()

	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     memberName(entry),
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}

	_, err = io.Copy(fw, rc)
	return err
}

// memberName picks the display name for an archive member, falling back to
// the key's final path segment. Any directory components are dropped so a
// hostile manifest cannot plant relative paths into the archive.
func memberName(entry BundleEntry) string {
	name := entry.Name
	if name == "" {
		name = path.Base(entry.Key)
	}
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || strings.Trim(name, ".") == "" {
		return DefaultFileName
	}
	return name
}
