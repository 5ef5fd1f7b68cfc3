// Package bridge wires every component — Feeders, queues, the client pool,
// worker populations, and the Controller/Watcher — into the running
// archivarius bridge process, the way the teacher's top-level main.go and
// cli/root.go assemble services from their constituent packages.
package bridge

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openprocurement/archivarius-bridge/clientpool"
	"github.com/openprocurement/archivarius-bridge/config"
	"github.com/openprocurement/archivarius-bridge/controller"
	"github.com/openprocurement/archivarius-bridge/db"
	"github.com/openprocurement/archivarius-bridge/feeder"
	"github.com/openprocurement/archivarius-bridge/logging"
	"github.com/openprocurement/archivarius-bridge/queue"
	"github.com/openprocurement/archivarius-bridge/seal"
	"github.com/openprocurement/archivarius-bridge/stats"
	"github.com/openprocurement/archivarius-bridge/store"
	"github.com/openprocurement/archivarius-bridge/upstream"
	"github.com/openprocurement/archivarius-bridge/worker"

	"github.com/prometheus/client_golang/prometheus"
)

// ConfigError reports a fatal configuration problem detected before the
// bridge starts, per spec.md §7's "Configuration error... fatal, prevents
// bridge start".
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bridge: configuration error: %s: %s", e.Field, e.Reason)
}

// ResourceFilter decides which rows a resource's Feeder should enqueue.
type ResourceFilter = feeder.Filter

// Bridge owns every long-running component of one archivarius bridge
// process.
type Bridge struct {
	id     string
	cfg    *config.Config
	source *store.CouchDBStore
	public *store.CouchDBStore
	secret store.SecretStore

	primary *queue.Queue
	retry   *queue.Queue
	clients *clientpool.Pool
	stats   *stats.Stats

	primaryPool *workerPool
	retryPool   *workerPool
	ctrl        *controller.Controller

	resources map[string]ResourceFilter
	deps      worker.Deps

	feederWG sync.WaitGroup
}

// New validates cfg and assembles a Bridge ready to Run. Resource filters
// are supplied by the caller per spec.md's "per-resource filter... is
// pluggable and external".
func New(cfg *config.Config, resources map[string]ResourceFilter) (*Bridge, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	source, err := store.NewSourceStore(db.CouchDBConfig{
		URL: cfg.CouchURL, Database: cfg.DBName, CreateIfMissing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: open source store: %w", err)
	}

	public, err := store.NewPublicArchive(db.CouchDBConfig{
		URL: cfg.CouchURL, Database: cfg.DBArchiveName, CreateIfMissing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: open public archive: %w", err)
	}

	secretStore, err := newSecretStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("bridge: open secret store: %w", err)
	}

	bridgeID := uuid.New().String()

	clients := clientpool.New(clientpool.Config{
		Upstream: upstream.Config{
			BaseURL:   cfg.ResourcesAPIServer,
			Version:   cfg.ResourcesAPIVersion,
			APIKey:    cfg.APIKey,
			UserAgent: cfg.UserAgent,
		},
		IncStep:                cfg.ClientIncStepTimeout,
		DecStep:                cfg.ClientDecStepTimeout,
		DropThreshold:          cfg.DropThresholdClientCookies,
		CreationInitialBackoff: clientpool.DefaultCreationBackoff,
	}, bridgeID)

	primaryQueue := queue.New(cfg.ResourceItemsQueueSize)
	retryQueue := queue.New(cfg.RetryResourceItemsQueueSize)
	st := stats.New(prometheus.DefaultRegisterer)

	deps := worker.Deps{
		Source:  source,
		Public:  public,
		Secret:  secretStore,
		Clients: clients,
		Primary: primaryQueue,
		Retry:   retryQueue,
		Stats:   st,
		Seal: func(plaintext []byte) ([]byte, error) {
			return seal.Seal(cfg.SecretRecipientPublicKey, plaintext)
		},
		Config: worker.Config{
			RetryDefaultTimeout: cfg.RetryDefaultTimeout,
			RetriesCountMax:     cfg.RetriesCountMax,
			QueueTimeout:        cfg.QueueTimeout,
			WorkerSleep:         cfg.WorkerSleep,
		},
	}

	return &Bridge{
		id:        bridgeID,
		cfg:       cfg,
		source:    source,
		public:    public,
		secret:    secretStore,
		primary:   primaryQueue,
		retry:     retryQueue,
		clients:   clients,
		stats:     st,
		resources: resources,
		deps:      deps,
	}, nil
}

func newSecretStore(cfg *config.Config) (store.SecretStore, error) {
	switch cfg.SecretStorage {
	case "s3":
		return store.NewBlobSecretStore(context.Background(), store.BlobConfig{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case "couchdb", "":
		return store.NewCouchDBSecretStore(db.CouchDBConfig{
			URL:             cfg.CouchURL,
			Database:        cfg.DBArchiveName + "_secret",
			CreateIfMissing: true,
		})
	default:
		return nil, &ConfigError{Field: "secret_storage", Reason: fmt.Sprintf("unknown variant %q", cfg.SecretStorage)}
	}
}

func validateConfig(cfg *config.Config) error {
	if cfg.ResourcesAPIServer == "" {
		return &ConfigError{Field: "resources_api_server", Reason: "is required"}
	}
	u, err := url.Parse(cfg.ResourcesAPIServer)
	if err != nil || u.Scheme == "" {
		return &ConfigError{Field: "resources_api_server", Reason: "must be an absolute URL with a scheme"}
	}
	return nil
}

// Run starts every Feeder, the Controller/Watcher loops, and the initial
// worker populations, then blocks until ctx is cancelled or every Feeder
// has finished and both the primary and retry queues are empty (worker
// pools are not required to shrink to zero).
func (b *Bridge) Run(ctx context.Context) error {
	log := logging.MessageID(logging.Entry("bridge"), "ARCHBR-START").WithField("bridge_id", b.id)
	log.Info("bridge starting")
	defer logging.MessageID(logging.Entry("bridge"), "ARCHBR-STOP").Info("bridge stopped")

	if err := b.clients.RefillTo(ctx, 1); err != nil {
		return fmt.Errorf("bridge: initial client pool fill: %w", err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	b.primaryPool = newWorkerPool(runCtx, b.primary, b.deps)
	b.retryPool = newWorkerPool(runCtx, b.retry, workerDepsFor(b.deps, b.retry))

	for i := 0; i < b.cfg.WorkersMin; i++ {
		b.primaryPool.Spawn()
	}
	for i := 0; i < b.cfg.RetryWorkersMin; i++ {
		b.retryPool.Spawn()
	}

	b.ctrl = controller.New(controller.Config{
		WorkersMin:        b.cfg.WorkersMin,
		WorkersMax:        b.cfg.WorkersMax,
		RetryWorkersMin:   b.cfg.RetryWorkersMin,
		RetryWorkersMax:   b.cfg.RetryWorkersMax,
		ControllerPeriod:  b.cfg.QueuesControllerTimeout,
		WatchPeriod:       b.cfg.WatchInterval,
		ClientPoolMinSize: 1,
	}, b.primary, b.retry, b.clients, b.primaryPool, b.retryPool, b.stats)
	b.ctrl.Start(runCtx)
	defer b.ctrl.Stop()

	if err := b.ensureViews(ctx); err != nil {
		return fmt.Errorf("bridge: ensure views: %w", err)
	}
	b.startFeeders(runCtx)

	feedersDone := make(chan struct{})
	go func() {
		b.feederWG.Wait()
		close(feedersDone)
	}()

	b.waitForCompletion(runCtx, feedersDone, cancelRun)

	b.primaryPool.Wait()
	b.retryPool.Wait()
	return nil
}

// waitForCompletion blocks until ctx is cancelled (external shutdown signal)
// or, on a WatchInterval tick, every Feeder has finished and
// Controller.Done reports both queues empty, in which case it calls
// cancelRun to propagate that shutdown down to every worker and the
// Controller/Watcher loops.
func (b *Bridge) waitForCompletion(ctx context.Context, feedersDone <-chan struct{}, cancelRun context.CancelFunc) {
	var feedersFinished bool
	ticker := time.NewTicker(b.cfg.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-feedersDone:
			feedersDone = nil
			feedersFinished = true
		case <-ticker.C:
			if feedersFinished && b.ctrl.Done() {
				logging.Entry("bridge").Info("all populations drained, shutting down")
				cancelRun()
				return
			}
		}
	}
}

// workerDepsFor copies deps for a second worker population that reads
// from retryQueue instead of the primary queue and retries back onto it.
func workerDepsFor(deps worker.Deps, retryQueue *queue.Queue) worker.Deps {
	deps.Retry = retryQueue
	return deps
}

func (b *Bridge) ensureViews(ctx context.Context) error {
	for resource := range b.resources {
		if err := b.source.EnsureView(ctx, resource); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) startFeeders(ctx context.Context) {
	for resource, filter := range b.resources {
		f := &feeder.Feeder{
			Resource: resource,
			Scanner:  b.source,
			Filter:   filter,
			Queue:    b.primary,
			Stats:    b.stats,
		}

		b.feederWG.Add(1)
		go func(f *feeder.Feeder) {
			defer b.feederWG.Done()
			if err := f.Run(ctx); err != nil {
				logging.Entry("feeder").WithError(err).WithField("resource", f.Resource).Error("feeder terminated")
			}
		}(f)
	}
}

// ID returns the process-lifetime bridge identifier used to build every
// client's user-agent string.
func (b *Bridge) ID() string { return b.id }
