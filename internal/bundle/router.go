package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/listrank/internal/tracing"
)

// mutationLockKey is the Locker key shared by all register/deregister calls.
const mutationLockKey = "bundles"

// RouterConfig holds the dependencies of a Router.
type RouterConfig struct {
	Store     Store
	MaxModels int      // Defaults to DefaultMaxModels
	Locker    Locker   // Defaults to NopLocker
	Metrics   *Metrics // Optional
	Logger    *slog.Logger
}

// Router discovers bundles in a Store, assigns callers to them and manages
// their lifecycle.
//
// Within a process, register and deregister take a write lock while
// discovery and loading take a read lock, so a request never observes a
// bundle disappearing between choosing and loading it. The Locker extends
// mutual exclusion of mutations to other replicas sharing the store.
type Router struct {
	store     Store
	maxModels int
	locker    Locker
	metrics   *Metrics
	logger    *slog.Logger
	backend   string

	mu sync.RWMutex
}

// NewRouter creates a Router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.MaxModels <= 0 {
		cfg.MaxModels = DefaultMaxModels
	}
	if cfg.Locker == nil {
		cfg.Locker = NopLocker{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	backend := "custom"
	if b, ok := cfg.Store.(interface{ Backend() string }); ok {
		backend = b.Backend()
	}
	return &Router{
		store:     cfg.Store,
		maxModels: cfg.MaxModels,
		locker:    cfg.Locker,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		backend:   backend,
	}
}

// MaxModels returns the configured bundle cap.
func (r *Router) MaxModels() int {
	return r.maxModels
}

// Discover returns the names of all available bundles, sorted.
func (r *Router) Discover(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.discover(ctx)
}

func (r *Router) discover(ctx context.Context) (names []string, err error) {
	ctx, endSpan := tracing.StartStorageSpan(ctx, r.backend, tracing.StorageOperationList, "")
	defer func() { endSpan(err) }()

	names, err = r.store.List(ctx)
	r.metrics.observe(OpDiscover, err)
	if err != nil {
		return nil, err
	}
	// sorting is what makes Assign independent of storage order
	sort.Strings(names)
	r.metrics.setAvailable(len(names))
	return names, nil
}

// Select discovers, assigns and loads the bundle for callerID as one step
// with respect to mutations made through this Router.
func (r *Router) Select(ctx context.Context, callerID string) (*Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names, err := r.discover(ctx)
	if err != nil {
		return nil, err
	}
	name, err := Assign(callerID, names)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, name)
}

// Load reads and decodes the named bundle.
func (r *Router) Load(ctx context.Context, name string) (*Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.load(ctx, name)
}

func (r *Router) load(ctx context.Context, name string) (b *Bundle, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "bundle.Load")
	tracing.SetAttributes(ctx, attribute.String("model.name", name), attribute.String("storage.backend", r.backend))
	defer func() {
		r.metrics.observe(OpLoad, err)
		r.metrics.observeLoad(time.Since(start).Seconds())
		endSpan(err)
	}()

	files := make([][]byte, len(RequiredArtifacts))
	g, gctx := errgroup.WithContext(ctx)
	for i, filename := range RequiredArtifacts {
		g.Go(func() error {
			sctx, end := tracing.StartStorageSpan(gctx, r.backend, tracing.StorageOperationRead, name+"/"+filename)
			data, err := r.store.Read(sctx, name, filename)
			end(err)
			if err != nil {
				return err
			}
			files[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byName := make(map[string][]byte, len(files))
	for i, filename := range RequiredArtifacts {
		byName[filename] = files[i]
	}
	return Decode(name, byName)
}

// Register validates artifacts and stores them as bundle name. It fails with
// ErrTooManyModels when the cap is already reached, including when name is
// one of the deployed bundles. Validation failures write nothing. A store
// failure while replacing an existing bundle may leave that bundle
// unlisted; see S3Store.Write.
func (r *Router) Register(ctx context.Context, name string, artifacts []Artifact) (err error) {
	defer func() { r.metrics.observe(OpRegister, err) }()

	if err := ValidateName(name); err != nil {
		return err
	}

	unlock, err := r.lockMutations(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	names, err := r.discover(ctx)
	if err != nil {
		return err
	}
	if len(names) >= r.maxModels {
		return fmt.Errorf("%w: service can handle only %d models, remove one", ErrTooManyModels, r.maxModels)
	}

	files, err := CheckArtifacts(artifacts)
	if err != nil {
		return err
	}
	if _, err := Decode(name, files); err != nil {
		return err
	}

	ordered := make([]Artifact, 0, len(RequiredArtifacts))
	for _, filename := range RequiredArtifacts {
		ordered = append(ordered, Artifact{Filename: filename, Data: files[filename]})
	}

	ctx, endSpan := tracing.StartStorageSpan(ctx, r.backend, tracing.StorageOperationWrite, name)
	err = r.store.Write(ctx, name, ordered)
	endSpan(err)
	if err != nil {
		return err
	}

	r.logger.Info("model registered", "model", name, "backend", r.backend)
	return nil
}

// Deregister removes bundle name, complete or not. It fails with
// ErrBundleNotFound when nothing is stored under name.
func (r *Router) Deregister(ctx context.Context, name string) (err error) {
	defer func() { r.metrics.observe(OpDeregister, err) }()

	// no valid bundle can be stored under an invalid name
	if ValidateName(name) != nil {
		return fmt.Errorf("%w: %s", ErrBundleNotFound, name)
	}

	unlock, err := r.lockMutations(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	ctx, endSpan := tracing.StartStorageSpan(ctx, r.backend, tracing.StorageOperationDelete, name)
	err = r.store.Delete(ctx, name)
	endSpan(err)
	if err != nil {
		return err
	}

	r.logger.Info("model deregistered", "model", name, "backend", r.backend)
	return nil
}

// lockMutations takes the cross-replica lock, then the in-process write lock.
func (r *Router) lockMutations(ctx context.Context) (func(), error) {
	release, err := r.locker.Lock(ctx, mutationLockKey)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	return func() {
		r.mu.Unlock()
		release()
	}, nil
}

// Ping checks that the store can be listed. It backs the readiness probe.
func (r *Router) Ping(ctx context.Context) error {
	_, err := r.store.List(ctx)
	return err
}
