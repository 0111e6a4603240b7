package terrain

import (
	"context"
	"strconv"
	"sync"

	"github.com/unklstewy/viewscout/internal/logging"
	"github.com/unklstewy/viewscout/internal/metrics"
	"github.com/unklstewy/viewscout/pkg/geodesy"
)

// ElevationStore persists resolved heights keyed by CacheKey.
type ElevationStore interface {
	// LookupElevations returns the heights known for the given keys.
	// Unknown keys are simply absent from the result.
	LookupElevations(ctx context.Context, keys []string) (map[string]float64, error)

	// StoreElevations records heights for the given keys.
	StoreElevations(ctx context.Context, heights map[string]float64) error
}

// CacheKey rounds a point to 5 decimal places (~1.1 m), well below the
// resolution of any global elevation dataset.
func CacheKey(p geodesy.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 5, 64) + "," + strconv.FormatFloat(p.Lon, 'f', 5, 64)
}

// CachedSampler answers from an ElevationStore and forwards only the misses
// to the wrapped Sampler, in a single call.
//
// Store failures are logged and never fail the sampling call.
type CachedSampler struct {
	inner Sampler
	store ElevationStore
}

// NewCachedSampler wraps inner with a persistent elevation cache.
func NewCachedSampler(inner Sampler, store ElevationStore) *CachedSampler {
	return &CachedSampler{inner: inner, store: store}
}

// SampleElevations implements Sampler.
func (c *CachedSampler) SampleElevations(ctx context.Context, points []geodesy.Point) ([]Sample, error) {
	keys := make([]string, len(points))
	for i, p := range points {
		keys[i] = CacheKey(p)
	}

	cached, err := c.store.LookupElevations(ctx, keys)
	if err != nil {
		logging.Warn().Err(err).Int("points", len(points)).Msg("elevation cache lookup failed")
		cached = nil
	}

	out := make([]Sample, len(points))
	var missIdx []int
	var missPoints []geodesy.Point
	for i, p := range points {
		if h, ok := cached[keys[i]]; ok {
			out[i] = Sample{Lat: p.Lat, Lon: p.Lon, Height: &h}
			continue
		}
		missIdx = append(missIdx, i)
		missPoints = append(missPoints, p)
	}
	metrics.TerrainPoints.WithLabelValues("cache").Add(float64(len(points) - len(missPoints)))

	if len(missPoints) == 0 {
		return out, nil
	}

	fetched, err := c.inner.SampleElevations(ctx, missPoints)
	if err != nil {
		return nil, err
	}
	if err := CheckLength(missPoints, fetched); err != nil {
		return nil, err
	}

	fresh := make(map[string]float64, len(fetched))
	for j, s := range fetched {
		out[missIdx[j]] = s
		if s.Height != nil {
			fresh[keys[missIdx[j]]] = *s.Height
		}
	}

	if len(fresh) > 0 {
		if err := c.store.StoreElevations(ctx, fresh); err != nil {
			logging.Warn().Err(err).Int("points", len(fresh)).Msg("elevation cache store failed")
		}
	}

	return out, nil
}

// DefaultMemoryCapacity bounds a MemoryStore created with a non-positive
// capacity. At the default parameters an analysis samples 2,880 points.
const DefaultMemoryCapacity = 500000

// memoryEntry is a node of the MemoryStore recency list.
type memoryEntry struct {
	key    string
	height float64
	prev   *memoryEntry
	next   *memoryEntry
}

// MemoryStore is an in-process ElevationStore used when no database is
// configured. It holds at most capacity heights and evicts the least
// recently used one when full.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*memoryEntry

	// head.next is the most recently used entry, tail.prev the least
	head *memoryEntry
	tail *memoryEntry

	evictions int64
}

// NewMemoryStore creates an empty in-memory elevation store holding up to
// capacity heights.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	m := &MemoryStore{
		capacity: capacity,
		items:    make(map[string]*memoryEntry),
		head:     &memoryEntry{},
		tail:     &memoryEntry{},
	}
	m.head.next = m.tail
	m.tail.prev = m.head
	return m
}

// LookupElevations implements ElevationStore. Found keys become the most
// recently used.
func (m *MemoryStore) LookupElevations(ctx context.Context, keys []string) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := make(map[string]float64)
	for _, k := range keys {
		if e, ok := m.items[k]; ok {
			m.moveToFront(e)
			found[k] = e.height
		}
	}
	return found, nil
}

// StoreElevations implements ElevationStore.
func (m *MemoryStore) StoreElevations(ctx context.Context, heights map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, h := range heights {
		if e, ok := m.items[k]; ok {
			e.height = h
			m.moveToFront(e)
			continue
		}
		e := &memoryEntry{key: k, height: h}
		m.addToFront(e)
		m.items[k] = e
	}

	for len(m.items) > m.capacity {
		m.evictOldest()
	}
	return nil
}

// Len returns the number of cached heights.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Evictions returns how many heights were dropped to stay within capacity.
func (m *MemoryStore) Evictions() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictions
}

// List operations; callers hold m.mu.

func (m *MemoryStore) addToFront(e *memoryEntry) {
	e.prev = m.head
	e.next = m.head.next
	m.head.next.prev = e
	m.head.next = e
}

func (m *MemoryStore) unlink(e *memoryEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (m *MemoryStore) moveToFront(e *memoryEntry) {
	m.unlink(e)
	m.addToFront(e)
}

func (m *MemoryStore) evictOldest() {
	oldest := m.tail.prev
	if oldest == m.head {
		return
	}
	m.unlink(oldest)
	delete(m.items, oldest.key)
	m.evictions++
}
