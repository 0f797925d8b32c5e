package attention

import (
	"sync"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

// globalLock serializes every Attention.Apply call, mirroring the reference
// implementation's process-wide std::mutex guarding kernel dispatch (BLAS
// handles and workspace scratch are assumed non-reentrant). Acquired for the
// full body of Apply, including the Invariants Guard.
var globalLock sync.Mutex

// ownership records where a Q/K/V pointer's storage lives, so the dispatcher
// knows whether to let Go's GC reclaim it, leave a caller-owned cache slot
// alone, or keep a view tensor alive only as long as the thing it aliases.
type ownership int

const (
	// ownedCall is call-scoped storage allocated fresh for this Apply call.
	ownedCall ownership = iota
	// viewOf is an aliasing view into another call-scoped tensor (e.g. one
	// partition of a fused QKV projection) that must outlive Scoring.
	viewOf
	// cacheSlot is caller-owned cache storage that outlives the call.
	cacheSlot
)

// qkvRef is one of Q, K, V as observed by the Scoring Stage: a tensor handle
// plus where its storage came from.
type qkvRef struct {
	t   *tensor.Tensor
	own ownership
}

// dispatchResult is everything the Scoring Stage needs: the Q, K, V
// references chosen by the dispatcher.
type dispatchResult struct {
	q, k, v qkvRef
}

// dispatch runs the Attention Dispatcher (spec.md §4.3): selects context vs.
// self branch, and within each, the cache sub-branch, then invokes the
// Projection Stage. It records the chosen branch as a metric.
func dispatch(c *Call, w *Weights, b binding) (dispatchResult, error) {
	switch c.AttnType {
	case Context:
		return dispatchContext(c, w, b)
	case Self:
		return dispatchSelf(c, w, b)
	default:
		return dispatchResult{}, newError(InvalidArgument, "unknown attn_type %v", c.AttnType)
	}
}

func dispatchContext(c *Call, w *Weights, b binding) (dispatchResult, error) {
	q, err := projectContextQ(c, w)
	if err != nil {
		return dispatchResult{}, err
	}

	switch {
	case b.memoryLive():
		recordBranch(Context, "cache_hit")
		k := qkvRef{t: c.Cache.Get(slotMemoryKeys), own: cacheSlot}
		v := qkvRef{t: c.Cache.Get(slotMemoryValues), own: cacheSlot}
		return dispatchResult{q: q, k: k, v: v}, nil

	case b.anySlot:
		recordBranch(Context, "cache_fill")
		k, v, err := projectContextKV(c, w, true)
		if err != nil {
			return dispatchResult{}, err
		}
		return dispatchResult{q: q, k: k, v: v}, nil

	default:
		recordBranch(Context, "no_cache")
		k, v, err := projectContextKV(c, w, false)
		if err != nil {
			return dispatchResult{}, err
		}
		return dispatchResult{q: q, k: k, v: v}, nil
	}
}

func dispatchSelf(c *Call, w *Weights, b binding) (dispatchResult, error) {
	q, newK, newV, err := projectSelf(c, w)
	if err != nil {
		return dispatchResult{}, err
	}

	var k, v qkvRef
	if b.selfKeysLive {
		recordBranch(Self, "cache_grow")
		k, err = concatSelfSlot(c.Cache, slotSelfKeys, newK.t)
	} else {
		recordBranch(Self, "no_cache")
		k = newK
	}
	if err != nil {
		return dispatchResult{}, err
	}

	if b.selfValuesLive {
		v, err = concatSelfSlot(c.Cache, slotSelfValues, newV.t)
	} else {
		v = newV
	}
	if err != nil {
		return dispatchResult{}, err
	}

	if c.Cache != nil && c.Cache.HasAnySlot() {
		writebackSelf(c.Cache, k.t, v.t)
		k.own, v.own = cacheSlot, cacheSlot
	}

	return dispatchResult{q: q, k: k, v: v}, nil
}
