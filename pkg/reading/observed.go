package reading

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrName = "github.com/tilsley/scmreader/pkg/reading"

// Operations recorded on FetchEvent.
const (
	OpRead   = "read"
	OpTree   = "tree"
	OpSearch = "search"
)

// Outcomes recorded on FetchEvent.
const (
	OutcomeOK                 = "ok"
	OutcomeNotModified        = "not_modified"
	OutcomeNotFound           = "not_found"
	OutcomeNotAllowed         = "not_allowed"
	OutcomeTransportError     = "transport_error"
	OutcomeUnexpectedResponse = "unexpected_response"
	OutcomeError              = "error"
)

// FetchEvent describes one reader call.
type FetchEvent struct {
	ID         uuid.UUID
	Operation  string
	URL        string
	ETag       string
	Outcome    string
	DurationMs int64
	FileCount  int
	OccurredAt time.Time
}

// FetchRecorder persists FetchEvents.
type FetchRecorder interface {
	RecordFetch(ctx context.Context, event FetchEvent) error
}

// Outcome classifies err into one of the Outcome constants.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case IsNotModified(err):
		return OutcomeNotModified
	case IsNotFound(err):
		return OutcomeNotFound
	case IsNotAllowed(err):
		return OutcomeNotAllowed
	case IsTransport(err):
		return OutcomeTransportError
	case IsUnexpectedResponse(err):
		return OutcomeUnexpectedResponse
	default:
		return OutcomeError
	}
}

// Compile-time check.
var _ URLReader = (*ObservedReader)(nil)

// ObservedReader traces every call, emits OTel metrics and hands a
// FetchEvent to the recorder.
type ObservedReader struct {
	inner    URLReader
	recorder FetchRecorder
	log      *slog.Logger

	tracer   trace.Tracer
	count    metric.Int64Counter
	duration metric.Float64Histogram
	now      func() time.Time
}

// NewObservedReader wraps inner. recorder and log may be nil.
func NewObservedReader(inner URLReader, recorder FetchRecorder, log *slog.Logger) *ObservedReader {
	if log == nil {
		log = slog.Default()
	}
	m := otel.Meter(instrName)
	count, _ := m.Int64Counter("scmreader.read.count",
		metric.WithDescription("Number of reader calls by operation and outcome"))
	duration, _ := m.Float64Histogram("scmreader.read.duration",
		metric.WithDescription("Reader call duration in milliseconds"),
		metric.WithUnit("ms"))

	return &ObservedReader{
		inner:    inner,
		recorder: recorder,
		log:      log,
		tracer:   otel.Tracer(instrName),
		count:    count,
		duration: duration,
		now:      time.Now,
	}
}

// Read implements URLReader.
func (o *ObservedReader) Read(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := o.observe(ctx, OpRead, url, func(ctx context.Context) (string, int, error) {
		var err error
		data, err = o.inner.Read(ctx, url)
		if err != nil {
			return "", 0, err
		}
		return "", 1, nil
	})
	return data, err
}

// ReadURL implements URLReader.
func (o *ObservedReader) ReadURL(ctx context.Context, url string, opts *ReadURLOptions) (*ReadURLResponse, error) {
	var resp *ReadURLResponse
	err := o.observe(ctx, OpRead, url, func(ctx context.Context) (string, int, error) {
		var err error
		resp, err = o.inner.ReadURL(ctx, url, opts)
		if err != nil {
			return "", 0, err
		}
		return resp.ETag, 1, nil
	})
	return resp, err
}

// ReadTree implements URLReader.
func (o *ObservedReader) ReadTree(ctx context.Context, url string, opts *ReadTreeOptions) (*ReadTreeResponse, error) {
	var tree *ReadTreeResponse
	err := o.observe(ctx, OpTree, url, func(ctx context.Context) (string, int, error) {
		var err error
		tree, err = o.inner.ReadTree(ctx, url, opts)
		if err != nil {
			return "", 0, err
		}
		return tree.ETag, len(tree.files), nil
	})
	return tree, err
}

// Search implements URLReader.
func (o *ObservedReader) Search(ctx context.Context, url string, opts *SearchOptions) (*SearchResponse, error) {
	var res *SearchResponse
	err := o.observe(ctx, OpSearch, url, func(ctx context.Context) (string, int, error) {
		var err error
		res, err = o.inner.Search(ctx, url, opts)
		if err != nil {
			return "", 0, err
		}
		return res.ETag, len(res.Files), nil
	})
	return res, err
}

// String implements fmt.Stringer.
func (o *ObservedReader) String() string {
	return o.inner.String()
}

func (o *ObservedReader) observe(
	ctx context.Context,
	op, url string,
	fn func(ctx context.Context) (etag string, files int, err error),
) error {
	ctx, span := o.tracer.Start(ctx, "scmreader."+op, trace.WithAttributes(
		attribute.String("scm.operation", op),
		attribute.String("scm.url", url),
	))
	defer span.End()

	start := o.now()
	etag, files, err := fn(ctx)
	elapsed := o.now().Sub(start)
	outcome := Outcome(err)

	span.SetAttributes(attribute.String("scm.outcome", outcome))
	if err != nil && outcome != OutcomeNotModified {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	o.count.Add(ctx, 1, attrs)
	o.duration.Record(ctx, float64(elapsed.Milliseconds()), attrs)

	o.log.Debug("reader call", "operation", op, "url", url, "outcome", outcome, "durationMs", elapsed.Milliseconds())

	if o.recorder != nil {
		event := FetchEvent{
			ID:         uuid.New(),
			Operation:  op,
			URL:        url,
			ETag:       etag,
			Outcome:    outcome,
			DurationMs: elapsed.Milliseconds(),
			FileCount:  files,
			OccurredAt: start.UTC(),
		}
		if rerr := o.recorder.RecordFetch(ctx, event); rerr != nil {
			o.log.Warn("failed to record fetch event", "operation", op, "url", url, "error", rerr)
		}
	}
	return err
}
