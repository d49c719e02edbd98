package scene

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/sceneflow/persistence"
	"github.com/BaSui01/sceneflow/types"
)

const loadKey = "catalog"

// Catalog is a read-through cache over a Store. Concurrent misses share one
// load; the cache is only dropped by Invalidate.
type Catalog struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	group singleflight.Group

	mu  sync.RWMutex
	idx *index
	// generation changes on every Invalidate so a load that started before
	// it cannot repopulate the cache with stale data.
	generation uint64
}

type index struct {
	ordered    []*Scene
	byCode     map[string]*Scene
	byCategory map[Category][]*Scene
	loadedAt   time.Time
}

// Stats describes the loaded catalog.
type Stats struct {
	Loaded     bool             `json:"loaded"`
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	LoadedAt   *time.Time       `json:"loaded_at,omitempty"`
}

// NewCatalog creates a catalog over store. Nothing is loaded until first use.
func NewCatalog(store Store, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		store:  store,
		logger: logger.With(zap.String("component", "scene_catalog")),
		now:    time.Now,
	}
}

// Load populates the cache if needed.
func (c *Catalog) Load(ctx context.Context) error {
	_, err := c.ensure(ctx)
	return err
}

// Invalidate drops the cache; the next read reloads from the store.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.idx = nil
	c.generation++
	c.mu.Unlock()
	c.group.Forget(loadKey)
	c.logger.Info("scene catalog invalidated")
}

// Reload invalidates and loads again.
func (c *Catalog) Reload(ctx context.Context) error {
	c.Invalidate()
	return c.Load(ctx)
}

// GetByCode returns one scene or an ErrSceneNotFound error.
func (c *Catalog) GetByCode(ctx context.Context, code string) (*Scene, error) {
	idx, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}
	s, ok := idx.byCode[code]
	if !ok {
		return nil, types.Errorf(types.ErrSceneNotFound, "scene %q not found", code)
	}
	return s, nil
}

// GetByCategory returns the scenes of one category, ordered by code.
func (c *Catalog) GetByCategory(ctx context.Context, category Category) ([]*Scene, error) {
	idx, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return append([]*Scene(nil), idx.byCategory[category]...), nil
}

// All returns every loaded scene ordered by code.
func (c *Catalog) All(ctx context.Context) ([]*Scene, error) {
	idx, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return append([]*Scene(nil), idx.ordered...), nil
}

// FindCandidates runs filter over the loaded scenes.
func (c *Catalog) FindCandidates(ctx context.Context, filter Filter) ([]*Scene, error) {
	idx, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(idx.ordered), nil
}

// IncrementUsage records an execution in the store and in the cache.
func (c *Catalog) IncrementUsage(ctx context.Context, code string, update UsageUpdate) error {
	if update.At.IsZero() {
		update.At = c.now()
	}
	stats, err := c.store.IncrementUsage(ctx, code, update)
	if errors.Is(err, persistence.ErrNotFound) {
		return types.Errorf(types.ErrSceneNotFound, "scene %q not found", code)
	}
	if err != nil {
		return fmt.Errorf("increment usage of %q: %w", code, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idx == nil {
		return nil
	}
	if old, ok := c.idx.byCode[code]; ok {
		updated := old.Clone()
		updated.Usage = stats
		c.idx = c.idx.replace(updated)
	}
	return nil
}

// Stats summarizes the cache without forcing a load.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Stats{ByCategory: map[Category]int{}}
	if c.idx == nil {
		return st
	}
	st.Loaded = true
	st.Total = len(c.idx.ordered)
	for cat, scenes := range c.idx.byCategory {
		st.ByCategory[cat] = len(scenes)
	}
	at := c.idx.loadedAt
	st.LoadedAt = &at
	return st
}

func (c *Catalog) ensure(ctx context.Context) (*index, error) {
	c.mu.RLock()
	idx, gen := c.idx, c.generation
	c.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	// The shared load must not be cancelled by whichever caller started it.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(loadKey, func() (any, error) {
		return c.load(loadCtx, gen)
	})
	if err != nil {
		return nil, err
	}
	return v.(*index), nil
}

func (c *Catalog) load(ctx context.Context, gen uint64) (*index, error) {
	start := c.now()
	scenes, err := c.store.ListActive(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to list scenes").
			WithCause(err).
			WithRetryable(true)
	}
	if err := ValidateAll(scenes); err != nil {
		c.logger.Error("scene catalog rejected", zap.Error(err))
		return nil, err
	}

	idx := buildIndex(scenes, c.now())

	c.mu.Lock()
	if c.generation == gen {
		c.idx = idx
	}
	c.mu.Unlock()

	c.logger.Info("scene catalog loaded",
		zap.Int("scenes", len(scenes)),
		zap.Int("categories", len(idx.byCategory)),
		zap.Duration("took", c.now().Sub(start)),
	)
	return idx, nil
}

func buildIndex(scenes []*Scene, at time.Time) *index {
	idx := &index{
		ordered:    make([]*Scene, 0, len(scenes)),
		byCode:     make(map[string]*Scene, len(scenes)),
		byCategory: make(map[Category][]*Scene),
		loadedAt:   at,
	}
	idx.ordered = append(idx.ordered, scenes...)
	sort.SliceStable(idx.ordered, func(i, j int) bool { return idx.ordered[i].Code < idx.ordered[j].Code })
	for _, s := range idx.ordered {
		idx.byCode[s.Code] = s
		idx.byCategory[s.Category] = append(idx.byCategory[s.Category], s)
	}
	return idx
}

// replace returns a copy of the index with one scene swapped, leaving
// readers of the previous index untouched.
func (idx *index) replace(s *Scene) *index {
	scenes := make([]*Scene, len(idx.ordered))
	for i, old := range idx.ordered {
		if old.Code == s.Code {
			scenes[i] = s
		} else {
			scenes[i] = old
		}
	}
	return buildIndex(scenes, idx.loadedAt)
}
