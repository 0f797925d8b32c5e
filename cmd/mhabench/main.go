// Command mhabench drives the fused attention operator against synthetic
// tensors: a benchmark and smoke-test harness, not a serving front end.
package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"golang.org/x/sync/semaphore"

	"github.com/conceptivecon/TurboTransformers/internal/attention"
	"github.com/conceptivecon/TurboTransformers/internal/tensor"
)

var (
	batch         = flag.Int("batch", 1, "batch size")
	querySeq      = flag.Int("q", 8, "query sequence length")
	keySeq        = flag.Int("k", 8, "key sequence length (context mode only)")
	heads         = flag.Int("heads", 4, "number of attention heads")
	headDim       = flag.Int("head-dim", 16, "size per head")
	attnType      = flag.String("attn-type", "self", "attn_type: self or context")
	calls         = flag.Int("calls", 1, "number of Apply calls to issue")
	maxConcurrent = flag.Int("max-concurrent", 8, "maximum number of concurrent in-flight Apply calls")
	preLayerNorm  = flag.Bool("pre-layernorm", false, "apply pre-LayerNorm")
	postLayerNorm = flag.Bool("post-layernorm", false, "apply post-LayerNorm")
	postAddInput  = flag.Bool("post-add-input", false, "apply residual add-input fusion")
	enableOTel    = flag.Bool("otel", false, "enable OpenTelemetry tracing (stdout)")
	dumpArrow     = flag.Bool("dump-arrow", false, "dump the output tensor as an Arrow IPC stream to stdout")
	verbose       = flag.Bool("verbose", false, "enable per-call debug logging of dispatch branch selection")
	seed          = flag.Int64("seed", 1, "random seed for synthetic weights/inputs")
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()
	attention.Verbose = *verbose

	if *enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	hidden := *heads * *headDim
	rng := rand.New(rand.NewSource(*seed))
	w := randomWeights(rng, *heads, *headDim)

	var at attention.AttnType
	switch *attnType {
	case "self":
		at = attention.Self
	case "context":
		at = attention.Context
	default:
		log.Fatal().Str("attn_type", *attnType).Msg("unknown attn_type")
	}

	op := attention.New(w)
	tracer := otel.Tracer("mhabench")
	sem := semaphore.NewWeighted(int64(*maxConcurrent))

	var lastOutput *tensor.Tensor
	var mu sync.Mutex
	var wg sync.WaitGroup

	started := time.Now()
	for i := 0; i < *calls; i++ {
		if err := sem.Acquire(context.Background(), 1); err != nil {
			log.Fatal().Err(err).Msg("failed to acquire admission semaphore")
		}
		wg.Add(1)
		go func(callIdx int) {
			defer wg.Done()
			defer sem.Release(1)

			_, span := tracer.Start(context.Background(), "mha.Apply")
			defer span.End()

			c := buildCall(rng, at, *batch, *querySeq, *keySeq, hidden, *preLayerNorm, *postLayerNorm, *postAddInput)
			output := tensor.New(*batch, *querySeq, hidden)
			if err := op.Apply(c, output, tensor.Null()); err != nil {
				log.Error().Err(err).Int("call", callIdx).Msg("attention Apply failed")
				return
			}
			mu.Lock()
			lastOutput = output
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(started)

	log.Info().
		Int("calls", *calls).
		Dur("elapsed", elapsed).
		Float64("calls_per_sec", float64(*calls)/elapsed.Seconds()).
		Msg("mhabench run complete")

	if *dumpArrow && lastOutput != nil {
		if err := dumpArrowOutput(os.Stdout, lastOutput); err != nil {
			log.Warn().Err(err).Msg("failed to write arrow stream")
		}
	}
}

func randomWeights(rng *rand.Rand, h, d int) *attention.Weights {
	hidden := h * d
	randMat := func(r, c int) *tensor.Tensor {
		t := tensor.New(r, c)
		for i := range t.Data() {
			t.Data()[i] = float32(rng.NormFloat64()) * 0.02
		}
		return t
	}
	randVec := func(n int) *tensor.Tensor {
		t := tensor.New(n)
		for i := range t.Data() {
			t.Data()[i] = float32(rng.NormFloat64()) * 0.02
		}
		return t
	}
	qkv := tensor.New(3, hidden, hidden)
	for i := range qkv.Data() {
		qkv.Data()[i] = float32(rng.NormFloat64()) * 0.02
	}

	return &attention.Weights{
		QWeight: randMat(hidden, hidden), KWeight: randMat(hidden, hidden), VWeight: randMat(hidden, hidden),
		QBias: randVec(hidden), KBias: randVec(hidden), VBias: randVec(hidden),
		QKVWeight: qkv, QKVBias: tensor.New(3, hidden),
		DenseWeight: randMat(hidden, hidden), DenseBias: randVec(hidden),
		LayerNormGamma: onesVec(hidden), LayerNormBeta: tensor.New(hidden),
		NumAttentionHeads: h, Hidden: hidden,
	}
}

func onesVec(n int) *tensor.Tensor {
	t := tensor.New(n)
	for i := range t.Data() {
		t.Data()[i] = 1
	}
	return t
}

func buildCall(rng *rand.Rand, at attention.AttnType, b, q, k, hidden int, pre, post, addInput bool) *attention.Call {
	randTensor := func(shape ...int) *tensor.Tensor {
		t := tensor.New(shape...)
		for i := range t.Data() {
			t.Data()[i] = float32(rng.NormFloat64())
		}
		return t
	}
	query := randTensor(b, q, hidden)

	var key, value *tensor.Tensor
	if at == attention.Context {
		key = randTensor(b, k, hidden)
		value = randTensor(b, k, hidden)
	} else {
		key, value = query, query
	}

	return &attention.Call{
		Key: key, Value: value, Query: query,
		AttnType: at, PreLayerNorm: pre, PostLayerNorm: post, PostAddInput: addInput,
	}
}

func dumpArrowOutput(w *os.File, t *tensor.Tensor) error {
	pool := memory.NewGoAllocator()
	dim := t.Shape(t.NDim() - 1)

	schema := arrow.NewSchema(
		[]arrow.Field{
			{Name: "row", Type: arrow.PrimitiveTypes.Int32},
			{Name: "output", Type: arrow.FixedSizeListOf(int32(dim), arrow.PrimitiveTypes.Float32)},
		},
		nil,
	)

	rowBuilder := array.NewInt32Builder(pool)
	defer rowBuilder.Release()
	outBuilder := array.NewFixedSizeListBuilder(pool, int32(dim), arrow.PrimitiveTypes.Float32)
	defer outBuilder.Release()
	floatBuilder := outBuilder.ValueBuilder().(*array.Float32Builder)

	data := t.Data()
	rows := len(data) / dim
	for r := 0; r < rows; r++ {
		rowBuilder.Append(int32(r))
		outBuilder.Append(true)
		floatBuilder.AppendValues(data[r*dim:(r+1)*dim], nil)
	}

	rowArr := rowBuilder.NewArray()
	defer rowArr.Release()
	outArr := outBuilder.NewArray()
	defer outArr.Release()

	rec := array.NewRecordBatch(schema, []arrow.Array{rowArr, outArr}, int64(rows))
	defer rec.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("mhabench"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}
