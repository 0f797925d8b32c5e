package attention

import "github.com/conceptivecon/TurboTransformers/internal/tensor"

// AttnType selects between the two structurally distinct computation graphs
// the Attention Dispatcher chooses between (spec.md §4.3).
type AttnType int

const (
	Context AttnType = iota
	Self
)

func (a AttnType) String() string {
	switch a {
	case Context:
		return "context"
	case Self:
		return "self"
	default:
		return "unknown"
	}
}

// Call bundles one invocation's inputs and flags — the conceptual operator
// signature of spec.md §6, minus the output sinks (those are the caller's
// to provide separately so ownership stays explicit).
type Call struct {
	Key, Value, Query *tensor.Tensor
	AttentionMask     *tensor.Tensor // may be nil: no masking applied
	AttnType          AttnType
	Cache             *LayerCache // may be nil: no cache, call-scoped only
	PreLayerNorm      bool
	PostLayerNorm     bool
	PostAddInput      bool
	IsTransWeight     bool
}

// guard runs the Invariants Guard (spec.md §4.1): every check that must pass
// before any compute begins, reported as a single InvalidArgument or
// InvariantViolation error. Nothing is mutated by this function.
func guard(c *Call, w *Weights) (binding, error) {
	if c.Key.NDim() != 3 || c.Value.NDim() != 3 || c.Query.NDim() != 3 {
		return binding{}, newError(InvalidArgument,
			"key/value/query must be rank 3, got ranks %d/%d/%d", c.Key.NDim(), c.Value.NDim(), c.Query.NDim())
	}
	if c.Key.Shape(0) != c.Value.Shape(0) {
		return binding{}, newError(InvalidArgument,
			"key batch %d != value batch %d", c.Key.Shape(0), c.Value.Shape(0))
	}
	if c.Key.Shape(0) != c.Query.Shape(0) {
		return binding{}, newError(InvalidArgument,
			"key batch %d != query batch %d", c.Key.Shape(0), c.Query.Shape(0))
	}
	if c.AttnType != Context && c.AttnType != Self {
		return binding{}, newError(InvalidArgument, "unknown attn_type %v", c.AttnType)
	}
	if w.NumAttentionHeads <= 0 || w.Hidden%w.NumAttentionHeads != 0 {
		return binding{}, newError(InvalidArgument,
			"num_attention_heads=%d does not divide hidden=%d", w.NumAttentionHeads, w.Hidden)
	}
	if c.AttnType == Context {
		if !c.Query.CoLocated(c.Key) || !c.Query.CoLocated(c.Value) {
			return binding{}, newError(InvalidArgument, "query/key/value are not co-located")
		}
	}
	if c.PostLayerNorm && c.PostAddInput {
		return binding{}, newError(InvalidArgument,
			"post_layernorm and post_add_input are mutually exclusive")
	}

	b, err := bind(c.Cache)
	if err != nil {
		return binding{}, err
	}
	return b, nil
}
