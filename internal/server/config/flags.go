package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/filegate/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-s string   HMAC secret for plan tokens
//	-k string   storage backend, "s3" or "minio"
//	-u string   storage access key
//	-p string   storage secret key
//	-b string   storage bucket name
//	-g string   storage region
//	-e string   storage base endpoint (e.g., "http://127.0.0.1:9000/")
//	-x string   storage key prefix
//	-n string   default plan
//	-t int      presigned URL validity, minutes
//	-r int      per-part URL validity, minutes
//	-m int      multipart part size, MiB
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes and then converted
//     to time.Duration values. Flags that are not passed leave the existing
//     values untouched, so finer-grained JSON settings survive.
//   - Plan limits are only configurable through the JSON file.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-s", "-k", "-u", "-p", "-b", "-g", "-e", "-x", "-n", "-t", "-r", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Backend, "k", config.Backend, "storage backend (s3|minio)")

	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "storage access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "storage secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "storage bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "storage region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "storage base endpoint")
	fs.StringVar(&config.KeyPrefix, "x", config.KeyPrefix, "storage key prefix")
	fs.StringVar(&config.DefaultPlan, "n", config.DefaultPlan, "default plan")

	presignTTL := fs.Int("t", int(config.PresignTTL.Minutes()), "presign_ttl (in minutes)")
	partURLTTL := fs.Int("r", int(config.PartURLTTL.Minutes()), "part_url_ttl (in minutes)")
	partSizeMiB := fs.Int64("m", config.PartSize/(1024*1024), "part size (in MiB)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Convert only flags that were actually set. Round-tripping the defaults
	// through minutes/MiB would silently truncate finer-grained values coming
	// from the JSON file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.PresignTTL = time.Duration(*presignTTL) * time.Minute
		case "r":
			config.PartURLTTL = time.Duration(*partURLTTL) * time.Minute
		case "m":
			config.PartSize = *partSizeMiB * 1024 * 1024
		}
	})
}
