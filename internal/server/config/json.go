package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/filegate/internal/flagx"
	"github.com/dmitrijs2005/filegate/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its non-empty fields are copied into the runtime
// Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr      string           `json:"endpoint_addr"`
	SecretKey         string           `json:"secret_key"`
	Backend           string           `json:"backend"`
	S3AccessKey       string           `json:"s3_access_key"`
	S3SecretKey       string           `json:"s3_secret_key"`
	S3Bucket          string           `json:"s3_bucket"`
	S3Region          string           `json:"s3_region"`
	S3BaseEndpoint    string           `json:"s3_base_endpoint"`
	KeyPrefix         string           `json:"key_prefix"`
	DefaultPlan       string           `json:"default_plan"`
	PlanLimits        map[string]int64 `json:"plan_limits"`
	PresignTTL        timex.Duration   `json:"presign_ttl"`
	PartURLTTL        timex.Duration   `json:"part_url_ttl"`
	PartSize          int64            `json:"part_size"`
	BundleSkipMissing *bool            `json:"bundle_skip_missing"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is the -c or -config command-line
// flags; if neither is set, no JSON file is loaded.
//
// Only fields present (non-zero) in the file override the defaults, so a
// partial JSON file is valid. If the file cannot be read or contains invalid
// JSON, the function panics: a half-applied configuration must never reach
// the presigning layer.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.Backend != "" {
		config.Backend = c.Backend
	}
	if c.S3AccessKey != "" {
		config.S3AccessKey = c.S3AccessKey
	}
	if c.S3SecretKey != "" {
		config.S3SecretKey = c.S3SecretKey
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.KeyPrefix != "" {
		config.KeyPrefix = c.KeyPrefix
	}
	if c.DefaultPlan != "" {
		config.DefaultPlan = c.DefaultPlan
	}
	if len(c.PlanLimits) > 0 {
		config.PlanLimits = c.PlanLimits
	}
	if c.PresignTTL.Duration != 0 {
		config.PresignTTL = time.Duration(c.PresignTTL.Duration)
	}
	if c.PartURLTTL.Duration != 0 {
		config.PartURLTTL = time.Duration(c.PartURLTTL.Duration)
	}
	if c.PartSize != 0 {
		config.PartSize = c.PartSize
	}
	if c.BundleSkipMissing != nil {
		config.BundleSkipMissing = *c.BundleSkipMissing
	}
}
