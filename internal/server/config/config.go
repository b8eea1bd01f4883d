// Package config handles configuration for the gateway server,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/filegate/internal/common"
)

// Minimum part size accepted by S3-compatible multipart APIs
// (every part except the last must be at least this large).
const minPartSize = 5 * 1024 * 1024

// Config holds runtime settings for the filegate server.
//
// Fields:
//   - EndpointAddr: bind address for the public HTTP endpoint.
//   - SecretKey: HMAC secret for verifying plan tokens (HS256). Do not use
//     test defaults in prod.
//   - Backend: object storage driver, "s3" (aws-sdk-go-v2) or "minio".
//   - S3AccessKey / S3SecretKey: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings.
//   - KeyPrefix: leading path segment of every derived storage key.
//   - DefaultPlan: plan applied when a request carries none or an unknown one.
//     Point it at the most restrictive plan, never the most permissive.
//   - PlanLimits: per-plan upload size ceilings in bytes.
//   - PresignTTL: validity of single-shot PUT/GET URLs.
//   - PartURLTTL: validity of per-part upload URLs.
//   - PartSize: part size returned to multipart clients, bytes.
//   - BundleSkipMissing: skip absent bundle members instead of failing the
//     whole archive.
type Config struct {
	EndpointAddr      string
	SecretKey         string
	Backend           string
	S3AccessKey       string
	S3SecretKey       string
	S3Bucket          string
	S3Region          string
	S3BaseEndpoint    string
	KeyPrefix         string
	DefaultPlan       string
	PlanLimits        map[string]int64
	PresignTTL        time.Duration
	PartURLTTL        time.Duration
	PartSize          int64
	BundleSkipMissing bool
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.SecretKey = "secretKey"
	c.Backend = "s3"
	c.S3AccessKey = "admin"
	c.S3SecretKey = "secretpassword"
	c.S3Bucket = "uploads"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.KeyPrefix = "uploads"
	c.DefaultPlan = "free"
	c.PlanLimits = map[string]int64{
		"free":   100 * 1024 * 1024,
		"pro":    1 * 1024 * 1024 * 1024,
		"promax": 5 * 1024 * 1024 * 1024,
	}
	c.PresignTTL = 15 * time.Minute
	c.PartURLTTL = 30 * time.Minute
	c.PartSize = 16 * 1024 * 1024
	c.BundleSkipMissing = true
}

// Validate checks settings whose absence must abort startup rather than
// surface as per-request 5xx responses: storage endpoint, bucket and
// credentials, the backend selector, and plan consistency.
func (c *Config) Validate() error {
	if c.Backend != "s3" && c.Backend != "minio" {
		return fmt.Errorf("%w: unknown backend %q", common.ErrorConfiguration, c.Backend)
	}
	if c.S3BaseEndpoint == "" {
		return fmt.Errorf("%w: storage endpoint is required", common.ErrorConfiguration)
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("%w: storage bucket is required", common.ErrorConfiguration)
	}
	if c.S3AccessKey == "" || c.S3SecretKey == "" {
		return fmt.Errorf("%w: storage credentials are required", common.ErrorConfiguration)
	}
	if len(c.PlanLimits) == 0 {
		return fmt.Errorf("%w: at least one plan limit is required", common.ErrorConfiguration)
	}
	if _, ok := c.PlanLimits[c.DefaultPlan]; !ok {
		return fmt.Errorf("%w: default plan %q has no configured limit", common.ErrorConfiguration, c.DefaultPlan)
	}
	if c.PartSize < minPartSize {
		return fmt.Errorf("%w: part size %d is below the storage minimum of %d", common.ErrorConfiguration, c.PartSize, minPartSize)
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
