// Package config loads and validates the archivarius bridge's runtime
// configuration from flags, environment variables, and an optional config
// file, grounded on the teacher's cli/root.go viper wiring and the
// teacher's config.Validator pattern for fatal startup validation.
package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable named in the bridge's option table: the
// upstream resources API connection, the CouchDB source/archive
// databases, the secret archive variant, queue sizing, worker population
// bounds, and per-client adaptive backoff steps.
type Config struct {
	ResourcesAPIServer  string
	ResourcesAPIVersion string
	APIKey              string
	UserAgent           string

	CouchURL      string
	DBName        string
	DBArchiveName string

	ResourceItemsQueueSize      int
	RetryResourceItemsQueueSize int

	WorkersMin      int
	WorkersMax      int
	RetryWorkersMin int
	RetryWorkersMax int

	WorkersIncThreshold int
	WorkersDecThreshold int

	QueuesControllerTimeout time.Duration
	WatchInterval           time.Duration
	QueueTimeout            time.Duration
	WorkerSleep             time.Duration

	RetriesCountMax     int
	RetryDefaultTimeout time.Duration

	ClientIncStepTimeout       time.Duration
	ClientDecStepTimeout       time.Duration
	DropThresholdClientCookies time.Duration

	SecretStorage            string
	SecretRecipientPublicKey []byte

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// BindFlags registers every bridge flag on fs and binds it into v, so a
// single Cobra command's persistent flag set drives the whole option
// table. Flag names match the option table's snake_case names with
// dashes, per spec.md §6.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String("resources-api-server", "", "base URL of the upstream resources API (required)")
	fs.String("resources-api-version", "", "upstream API version path segment")
	fs.String("api-key", "", "bearer token for the upstream resources API")
	fs.String("user-agent", "ArchivariusBridge", "user-agent prefix sent with every upstream request")

	fs.String("couch-url", "http://127.0.0.1:5984", "CouchDB server URL")
	fs.String("db-name", "edge_db", "live source database name")
	fs.String("db-archive-name", "archive_db", "public archive database name")

	fs.Int("resource-items-queue-size", 10000, "bounded capacity of the primary work queue")
	fs.Int("retry-resource-items-queue-size", -1, "bounded capacity of the retry work queue (-1 = unbounded)")

	fs.Int("workers-min", 1, "minimum primary worker population")
	fs.Int("workers-max", 3, "maximum primary worker population")
	fs.Int("retry-workers-min", 1, "minimum retry worker population")
	fs.Int("retry-workers-max", 2, "maximum retry worker population")

	fs.Int("workers-inc-threshold", 75, "advisory backlog percentage above which the controller favors scaling up")
	fs.Int("workers-dec-threshold", 35, "advisory backlog percentage below which the controller favors scaling down")

	fs.Int("queues-controller-timeout", 60, "controller tick period, in seconds")
	fs.Int("watch-interval", 10, "watcher tick period, in seconds")
	fs.Int("queue-timeout", 3, "per-dequeue-attempt timeout, in seconds")
	fs.Int("worker-sleep", 5, "sleep duration when the client pool is empty, in seconds")

	fs.Int("retries-count", 10, "maximum retry attempts before an item is dropped")
	fs.Int("retry-default-timeout", 3, "initial retry delay, in seconds")

	fs.Float64("client-inc-step-timeout", 0.1, "per-client request interval increment on rate-limit, in seconds")
	fs.Float64("client-dec-step-timeout", 0.02, "per-client request interval decrement on success, in seconds")
	fs.Float64("drop-threshold-client-cookies", 2, "request interval above which a client's cookies are cleared, in seconds")

	fs.String("secret-storage", "couchdb", "secret archive backend: couchdb or s3")
	fs.String("secret-recipient-public-key", "", "base64-encoded NaCl box recipient public key")

	fs.String("s3-endpoint", "", "S3-compatible endpoint URL (s3 secret storage only)")
	fs.String("s3-region", "us-east-1", "S3 region (s3 secret storage only)")
	fs.String("s3-bucket", "", "S3 bucket name (s3 secret storage only)")
	fs.String("s3-access-key", "", "S3 access key (s3 secret storage only)")
	fs.String("s3-secret-key", "", "S3 secret key (s3 secret storage only)")

	v.BindPFlags(fs)
}

// Load builds a Config from v, which should already have flags bound via
// BindFlags, a config file read (if any), and AutomaticEnv enabled by the
// caller — the same flags-then-env-then-file-then-defaults precedence the
// teacher's runServer established with viper.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ResourcesAPIServer:          v.GetString("resources-api-server"),
		ResourcesAPIVersion:         v.GetString("resources-api-version"),
		APIKey:                      v.GetString("api-key"),
		UserAgent:                   v.GetString("user-agent"),
		CouchURL:                    v.GetString("couch-url"),
		DBName:                      v.GetString("db-name"),
		DBArchiveName:               v.GetString("db-archive-name"),
		ResourceItemsQueueSize:      v.GetInt("resource-items-queue-size"),
		RetryResourceItemsQueueSize: v.GetInt("retry-resource-items-queue-size"),
		WorkersMin:                  v.GetInt("workers-min"),
		WorkersMax:                  v.GetInt("workers-max"),
		RetryWorkersMin:             v.GetInt("retry-workers-min"),
		RetryWorkersMax:             v.GetInt("retry-workers-max"),
		WorkersIncThreshold:         v.GetInt("workers-inc-threshold"),
		WorkersDecThreshold:         v.GetInt("workers-dec-threshold"),
		QueuesControllerTimeout:     time.Duration(v.GetInt("queues-controller-timeout")) * time.Second,
		WatchInterval:               time.Duration(v.GetInt("watch-interval")) * time.Second,
		QueueTimeout:                time.Duration(v.GetInt("queue-timeout")) * time.Second,
		WorkerSleep:                 time.Duration(v.GetInt("worker-sleep")) * time.Second,
		RetriesCountMax:             v.GetInt("retries-count"),
		RetryDefaultTimeout:         time.Duration(v.GetInt("retry-default-timeout")) * time.Second,
		ClientIncStepTimeout:        toDuration(v.GetFloat64("client-inc-step-timeout")),
		ClientDecStepTimeout:        toDuration(v.GetFloat64("client-dec-step-timeout")),
		DropThresholdClientCookies:  toDuration(v.GetFloat64("drop-threshold-client-cookies")),
		SecretStorage:               v.GetString("secret-storage"),
		S3Endpoint:                  v.GetString("s3-endpoint"),
		S3Region:                    v.GetString("s3-region"),
		S3Bucket:                    v.GetString("s3-bucket"),
		S3AccessKey:                 v.GetString("s3-access-key"),
		S3SecretKey:                 v.GetString("s3-secret-key"),
	}

	if key := v.GetString("secret-recipient-public-key"); key != "" {
		decoded, err := decodeBase64Key(key)
		if err != nil {
			return nil, fmt.Errorf("config: secret-recipient-public-key: %w", err)
		}
		cfg.SecretRecipientPublicKey = decoded
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func toDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// validate runs the startup checks that must prevent the bridge from
// running at all, per spec.md §7's "fatal, prevents bridge start" — built
// on the same Validator shape the teacher used for its service configs.
func validate(cfg *Config) error {
	v := NewValidator()
	v.RequireURL("resources_api_server", cfg.ResourcesAPIServer)
	v.RequireOneOf("secret_storage", cfg.SecretStorage, []string{"couchdb", "s3"})

	if cfg.SecretStorage == "s3" {
		v.RequireString("s3_bucket", cfg.S3Bucket)
		v.RequireURL("s3_endpoint", cfg.S3Endpoint)
	}
	return v.Validate()
}

func decodeBase64Key(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
