package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dmitrijs2005/filegate/internal/common"
	sc "github.com/dmitrijs2005/filegate/internal/server/config"
)

// MinioProvider implements Provider with the native minio-go client.
// Multipart primitives come from the Core API, which exposes the raw
// NewMultipartUpload/CompleteMultipartUpload/AbortMultipartUpload calls that
// the high-level client hides.
type MinioProvider struct {
	core   *minio.Core
	bucket string
}

// NewMinioProvider builds a Provider from the configured endpoint and static
// credentials. The endpoint scheme selects TLS.
func NewMinioProvider(c *sc.Config) (*MinioProvider, error) {
	u, err := url.Parse(c.S3BaseEndpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid storage endpoint %q", common.ErrorConfiguration, c.S3BaseEndpoint)
	}

	core, err := minio.NewCore(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(c.S3AccessKey, c.S3SecretKey, ""),
		Secure: u.Scheme == "https",
		Region: c.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorConfiguration, err)
	}

	return &MinioProvider{core: core, bucket: c.S3Bucket}, nil
}

func (p *MinioProvider) SignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	// Content type travels as a signed header so the client's PUT must match.
	headers := http.Header{}
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}

	u, err := p.core.Client.PresignHeader(ctx, http.MethodPut, p.bucket, key, ttl, url.Values{}, headers)
	if err != nil {
		return "", mapMinioError(err)
	}

	return u.String(), nil
}

func (p *MinioProvider) SignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := p.core.Client.PresignedGetObject(ctx, p.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", mapMinioError(err)
	}

	return u.String(), nil
}

func (p *MinioProvider) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	uploadID, err := p.core.NewMultipartUpload(ctx, p.bucket, key, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", mapMinioError(err)
	}

	return uploadID, nil
}

func (p *MinioProvider) SignUploadPart(ctx context.Context, uploadID, key string, partNumber int32, ttl time.Duration) (string, error) {
	params := url.Values{}
	params.Set("uploadId", uploadID)
	params.Set("partNumber", strconv.Itoa(int(partNumber)))

	u, err := p.core.Client.PresignHeader(ctx, http.MethodPut, p.bucket, key, ttl, params, http.Header{})
	if err != nil {
		return "", mapMinioError(err)
	}

	return u.String(), nil
}

func (p *MinioProvider) CompleteMultipartUpload(ctx context.Context, uploadID, key string, parts []CompletedPart) (string, error) {
	completed := make([]minio.CompletePart, 0, len(parts))
	for _, part := range parts {
		completed = append(completed, minio.CompletePart{
			PartNumber: int(part.PartNumber),
			ETag:       part.ETag,
		})
	}

	info, err := p.core.CompleteMultipartUpload(ctx, p.bucket, key, uploadID, completed, minio.PutObjectOptions{})
	if err != nil {
		return "", mapMinioError(err)
	}

	return info.Location, nil
}

func (p *MinioProvider) AbortMultipartUpload(ctx context.Context, uploadID, key string) error {
	if err := p.core.AbortMultipartUpload(ctx, p.bucket, key, uploadID); err != nil {
		return mapMinioError(err)
	}

	return nil
}

func (p *MinioProvider) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	// GetObject opens lazily, so stat first to surface NotFound before any
	// archive bytes are committed to a response.
	if _, err := p.core.Client.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{}); err != nil {
		return nil, mapMinioError(err)
	}

	obj, err := p.core.Client.GetObject(ctx, p.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioError(err)
	}

	return obj, nil
}

func (p *MinioProvider) HeadObject(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := p.core.Client.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapMinioError(err)
	}

	return ObjectInfo{
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// mapMinioError translates minio-go failures into the common taxonomy.
func mapMinioError(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NoSuchUpload":
		return fmt.Errorf("%w: %s", common.ErrorNotFound, resp.Message)
	case "InvalidPart", "InvalidPartOrder", "EntityTooSmall", "EntityTooLarge":
		return fmt.Errorf("%w: %s", common.ErrorValidation, resp.Message)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return fmt.Errorf("%w: %s", common.ErrorUnauthorized, resp.Message)
	case "AccessDenied":
		return fmt.Errorf("%w: %s", common.ErrorForbidden, resp.Message)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", common.ErrorNotFound, err)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", common.ErrorUnauthorized, err)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %v", common.ErrorForbidden, err)
	}

	return fmt.Errorf("%w: %v", common.ErrorTransient, err)
}
