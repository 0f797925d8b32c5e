package attention

import (
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

const (
	slotMemoryKeys   = "memory_keys"
	slotMemoryValues = "memory_values"
	slotSelfKeys     = "self_keys"
	slotSelfValues   = "self_values"
)

// LayerCache is the caller-owned, mutable-across-calls KV-cache entry of
// spec.md §3: "a mapping with recognized keys {memory_keys, memory_values,
// self_keys, self_values}". A slot is present iff it has ever been assigned
// (even to the null placeholder); it is live iff present and non-null. This
// distinction matters because "slot present, memory_* empty" selects the
// cache-fill branch in the Attention Dispatcher (spec.md §4.3), distinct from
// "no slots at all" which selects the call-scoped branch.
//
// Reads and writes are serialized by an internal RWMutex, following the same
// discipline as the teacher's internal/cache/cache.go MapCache — but unlike
// that best-effort vector cache, a LayerCache's mutations must additionally
// respect the Attention operator's own process-wide lock (see dispatch.go);
// this mutex only protects the slot map itself against concurrent Binding
// snapshots and direct caller access between calls.
type LayerCache struct {
	mu    sync.RWMutex
	slots map[string]*tensor.Tensor
}

// NewLayerCache returns an empty cache with no slots present — the "no
// cache" branch of the dispatcher.
func NewLayerCache() *LayerCache {
	return &LayerCache{slots: make(map[string]*tensor.Tensor)}
}

// NewLayerCacheWithSlots returns a cache with the given slots present
// (possibly null), e.g. for priming an empty context-mode cache-fill call or
// a self-mode incremental-decode cache.
func NewLayerCacheWithSlots(memory, self bool) *LayerCache {
	c := NewLayerCache()
	if memory {
		c.slots[slotMemoryKeys] = tensor.Null()
		c.slots[slotMemoryValues] = tensor.Null()
	}
	if self {
		c.slots[slotSelfKeys] = tensor.Null()
		c.slots[slotSelfValues] = tensor.Null()
	}
	return c
}

// HasAnySlot reports whether the cache has any recognized key present at
// all, regardless of liveness — used by the context-mode dispatcher to
// distinguish "cache fill" from "no cache".
func (c *LayerCache) HasAnySlot() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots) > 0
}

func (c *LayerCache) present(key string) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.slots[key]
	return ok
}

func (c *LayerCache) live(key string) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.slots[key]
	return ok && !t.IsNull()
}

// Get returns the tensor stored at key, or nil if the slot is not present.
func (c *LayerCache) Get(key string) *tensor.Tensor {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slots[key]
}

// Set assigns (or replaces) the tensor at key, marking the slot present.
func (c *LayerCache) Set(key string, t *tensor.Tensor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slots == nil {
		c.slots = make(map[string]*tensor.Tensor)
	}
	c.slots[key] = t
}

// binding is the KV-Cache Binding component (spec.md §4.2): the four
// liveness booleans plus the composite memory_live predicate, resolved once
// per call from the (possibly nil) LayerCache.
type binding struct {
	memoryKeysLive, memoryValuesLive bool
	selfKeysLive, selfValuesLive     bool
	anySlot                          bool
}

func (b binding) memoryLive() bool {
	return b.memoryKeysLive && b.memoryValuesLive
}

// bind resolves the KV-Cache Binding, rejecting the non-paired memory_*
// state forbidden by spec.md §3 invariant 5.
func bind(cache *LayerCache) (binding, error) {
	b := binding{
		memoryKeysLive:   cache.live(slotMemoryKeys),
		memoryValuesLive: cache.live(slotMemoryValues),
		selfKeysLive:     cache.live(slotSelfKeys),
		selfValuesLive:   cache.live(slotSelfValues),
		anySlot:          cache.HasAnySlot(),
	}
	if b.memoryKeysLive != b.memoryValuesLive {
		return binding{}, newError(InvariantViolation,
			"memory_keys live=%v but memory_values live=%v: must toggle as a pair", b.memoryKeysLive, b.memoryValuesLive)
	}
	return b, nil
}

// snapshot/restore: checkpoint a LayerCache to and from CBOR, so an
// incremental decode session's KV-cache can survive a process restart.
// Out of scope for the reference implementation (the cache is entirely
// in-process there) but a natural ambient extension for a Go service that
// wants to persist decode state; grounded on the teacher's use of
// github.com/fxamacker/cbor/v2 to decode request bodies in
// cmd/fletcher/server.go's handleEncode.

type wireTensor struct {
	Shape []int     `cbor:"shape"`
	Data  []float32 `cbor:"data"`
}

// MarshalCBOR serializes every present slot (including null placeholders,
// recorded as a zero-length Shape) to a CBOR byte string.
func (c *LayerCache) MarshalCBOR() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	wire := make(map[string]wireTensor, len(c.slots))
	for k, t := range c.slots {
		if t.IsNull() {
			wire[k] = wireTensor{}
			continue
		}
		wire[k] = wireTensor{Shape: t.Shapes(), Data: t.Data()}
	}
	return cbor.Marshal(wire)
}

// UnmarshalLayerCache rebuilds a LayerCache from bytes produced by
// MarshalCBOR.
func UnmarshalLayerCache(b []byte) (*LayerCache, error) {
	var wire map[string]wireTensor
	if err := cbor.Unmarshal(b, &wire); err != nil {
		return nil, err
	}
	c := NewLayerCache()
	for k, wt := range wire {
		if len(wt.Shape) == 0 {
			c.slots[k] = tensor.Null()
			continue
		}
		c.slots[k] = tensor.Wrap(wt.Data, wt.Shape...)
	}
	return c, nil
}
