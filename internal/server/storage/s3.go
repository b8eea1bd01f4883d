package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/dmitrijs2005/filegate/internal/common"
	sc "github.com/dmitrijs2005/filegate/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
	presignUploadPart = func(pc *s3.PresignClient, ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignUploadPart(ctx, in, optFns...)
	}
)

// S3Provider implements Provider on top of aws-sdk-go-v2, which also covers
// S3-compatible backends such as MinIO when a base endpoint is configured.
type S3Provider struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3Provider builds a Provider from the configured static credentials,
// region and base endpoint. Path-style addressing is used so that bucket
// names never have to resolve through DNS on self-hosted backends.
func NewS3Provider(ctx context.Context, c *sc.Config) (*S3Provider, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3AccessKey,
			c.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorConfiguration, err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Provider{
		client:  client,
		presign: newS3PresignClient(client),
		bucket:  c.S3Bucket,
	}, nil
}

func (p *S3Provider) SignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: &p.bucket,
		Key:    &key,
	}
	if contentType != "" {
		in.ContentType = &contentType
	}

	req, err := presignPutObject(p.presign, ctx, in, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapS3Error(err)
	}

	return req.URL, nil
}

func (p *S3Provider) SignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := presignGetObject(p.presign, ctx, &s3.GetObjectInput{
		Bucket: &p.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapS3Error(err)
	}

	return req.URL, nil
}

func (p *S3Provider) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	in := &s3.CreateMultipartUploadInput{
		Bucket: &p.bucket,
		Key:    &key,
	}
	if contentType != "" {
		in.ContentType = &contentType
	}

	out, err := p.client.CreateMultipartUpload(ctx, in)
	if err != nil {
		return "", mapS3Error(err)
	}

	return aws.ToString(out.UploadId), nil
}

func (p *S3Provider) SignUploadPart(ctx context.Context, uploadID, key string, partNumber int32, ttl time.Duration) (string, error) {
	req, err := presignUploadPart(p.presign, ctx, &s3.UploadPartInput{
		Bucket:     &p.bucket,
		Key:        &key,
		UploadId:   &uploadID,
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapS3Error(err)
	}

	return req.URL, nil
}

func (p *S3Provider) CompleteMultipartUpload(ctx context.Context, uploadID, key string, parts []CompletedPart) (string, error) {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, part := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(part.PartNumber),
			ETag:       aws.String(part.ETag),
		})
	}

	out, err := p.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   &p.bucket,
		Key:      &key,
		UploadId: &uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return "", mapS3Error(err)
	}

	return aws.ToString(out.Location), nil
}

func (p *S3Provider) AbortMultipartUpload(ctx context.Context, uploadID, key string) error {
	_, err := p.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   &p.bucket,
		Key:      &key,
		UploadId: &uploadID,
	})
	if err != nil {
		return mapS3Error(err)
	}

	return nil
}

func (p *S3Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &p.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, mapS3Error(err)
	}

	return out.Body, nil
}

func (p *S3Provider) HeadObject(ctx context.Context, key string) (ObjectInfo, error) {
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &p.bucket,
		Key:    &key,
	})
	if err != nil {
		return ObjectInfo{}, mapS3Error(err)
	}

	return ObjectInfo{
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// mapS3Error translates SDK failures into the common taxonomy. Anything not
// recognizably a client or permission problem is treated as transient so the
// caller may retry at its own discretion.
func mapS3Error(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NoSuchUpload", "NotFound":
			return fmt.Errorf("%w: %s", common.ErrorNotFound, apiErr.ErrorMessage())
		case "InvalidPart", "InvalidPartOrder", "EntityTooSmall", "EntityTooLarge":
			return fmt.Errorf("%w: %s", common.ErrorValidation, apiErr.ErrorMessage())
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
			return fmt.Errorf("%w: %s", common.ErrorUnauthorized, apiErr.ErrorMessage())
		case "AccessDenied", "AllAccessDisabled":
			return fmt.Errorf("%w: %s", common.ErrorForbidden, apiErr.ErrorMessage())
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch code := respErr.HTTPStatusCode(); {
		case code == 404:
			return fmt.Errorf("%w: %v", common.ErrorNotFound, err)
		case code == 401:
			return fmt.Errorf("%w: %v", common.ErrorUnauthorized, err)
		case code == 403:
			return fmt.Errorf("%w: %v", common.ErrorForbidden, err)
		}
	}

	return fmt.Errorf("%w: %v", common.ErrorTransient, err)
}
