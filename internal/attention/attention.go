package attention

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

// Verbose enables per-call debug logging of dispatch-branch selection. Off
// by default, matching the reference operator's silent hot path.
var Verbose = false

// Attention is the fused Multi-Headed Attention operator: the public façade
// wiring the Invariants Guard, KV-Cache Binding, Attention Dispatcher, and
// Scoring Stage around a fixed set of Weights.
type Attention struct {
	Weights *Weights
}

// New constructs an Attention operator over the given weights.
func New(w *Weights) *Attention {
	return &Attention{Weights: w}
}

// Apply runs one attention call. output must be a non-null tensor shaped
// [B, Q, hidden]; it is written unconditionally. attScore, if non-null, is
// populated with the post-softmax attention weights shaped [B, H, Q, K_eff];
// pass tensor.Null() to discard them. The call is serialized against every
// other Apply on the process by a single global lock, matching the
// reference implementation's non-reentrant kernel assumption.
func (a *Attention) Apply(c *Call, output, attScore *tensor.Tensor) error {
	globalLock.Lock()
	defer globalLock.Unlock()

	started := time.Now()
	defer func() { applyDuration.Observe(time.Since(started).Seconds()) }()

	b, err := guard(c, a.Weights)
	if err != nil {
		if ae, ok := err.(*Error); ok {
			recordGuardRejection(ae.Kind)
		}
		return err
	}
	recordActiveCacheEntries(b)

	r, err := dispatch(c, a.Weights, b)
	if err != nil {
		return err
	}

	if Verbose {
		log.Debug().
			Str("attn_type", c.AttnType.String()).
			Bool("memory_live", b.memoryLive()).
			Bool("self_keys_live", b.selfKeysLive).
			Msg("attention: dispatched")
	}

	if err := score(c, a.Weights, r, output, attScore); err != nil {
		return err
	}

	return nil
}
