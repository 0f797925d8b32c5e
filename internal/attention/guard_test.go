package attention

import (
	"testing"

	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

func identityWeights(h, d int) *Weights {
	hidden := h * d
	identity := tensor.New(hidden, hidden)
	data := identity.Data()
	for i := 0; i < hidden; i++ {
		data[i*hidden+i] = 1
	}
	zeroBias := tensor.New(hidden)
	qkvIdentity := tensor.New(3, hidden, hidden)
	for p := 0; p < 3; p++ {
		part := qkvIdentity.Slice0(p)
		pd := part.Data()
		for i := 0; i < hidden; i++ {
			pd[i*hidden+i] = 1
		}
	}
	gamma := tensor.New(hidden)
	for i := range gamma.Data() {
		gamma.Data()[i] = 1
	}
	beta := tensor.New(hidden)

	return &Weights{
		QWeight: identity, KWeight: identity, VWeight: identity,
		QBias: zeroBias, KBias: zeroBias, VBias: zeroBias,
		QKVWeight: qkvIdentity, QKVBias: tensor.New(3, hidden),
		DenseWeight: identity, DenseBias: zeroBias,
		LayerNormGamma: gamma, LayerNormBeta: beta,
		NumAttentionHeads: h, Hidden: hidden,
	}
}

func TestGuardRejectsRankMismatch(t *testing.T) {
	w := identityWeights(2, 4)
	c := &Call{
		Key:      tensor.New(1, 3, 8),
		Value:    tensor.New(1, 3, 8),
		Query:    tensor.New(1, 2), // wrong rank
		AttnType: Context,
	}
	_, err := guard(c, w)
	if err == nil {
		t.Fatal("expected InvalidArgument, got nil")
	}
	ae, ok := err.(*Error)
	if !ok || ae.Kind != InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestGuardRejectsBatchMismatch(t *testing.T) {
	w := identityWeights(2, 4)
	c := &Call{
		Key:      tensor.New(2, 3, 8),
		Value:    tensor.New(1, 3, 8),
		Query:    tensor.New(1, 2, 8),
		AttnType: Context,
	}
	_, err := guard(c, w)
	if err == nil {
		t.Fatal("expected InvalidArgument for batch mismatch")
	}
}

func TestGuardRejectsMutualExclusiveFlags(t *testing.T) {
	w := identityWeights(2, 4)
	c := &Call{
		Key:           tensor.New(1, 3, 8),
		Value:         tensor.New(1, 3, 8),
		Query:         tensor.New(1, 2, 8),
		AttnType:      Context,
		PostLayerNorm: true,
		PostAddInput:  true,
	}
	_, err := guard(c, w)
	if err == nil {
		t.Fatal("expected rejection of post_layernorm+post_add_input")
	}
}

func TestGuardRejectsUnpairedMemoryCache(t *testing.T) {
	w := identityWeights(2, 4)
	cache := NewLayerCache()
	cache.Set(slotMemoryKeys, tensor.New(1, 2, 3, 4))
	c := &Call{
		Key:      tensor.New(1, 3, 8),
		Value:    tensor.New(1, 3, 8),
		Query:    tensor.New(1, 2, 8),
		AttnType: Context,
		Cache:    cache,
	}
	_, err := guard(c, w)
	if err == nil {
		t.Fatal("expected InvariantViolation for unpaired memory cache")
	}
	ae, ok := err.(*Error)
	if !ok || ae.Kind != InvariantViolation {
		t.Fatalf("expected InvariantViolation, got %v", err)
	}
}
