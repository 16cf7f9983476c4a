// Package dispatcher turns selected input into scan requests and normalizes
// every result into a scan.Outcome.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scanclient"
)

// User-visible messages produced by the dispatcher.
const (
	MsgNoFile        = "Please select a file first."
	MsgNoText        = "Please enter some text to scan."
	MsgFileScanError = "An error occurred while scanning the file."
	MsgTextScanError = "An error occurred while scanning the text."
)

// ErrBusy is returned when a scan of the same kind is already in flight.
var ErrBusy = errors.New("scan already in progress")

// ScanClient is the transport to the scanning service.
type ScanClient interface {
	ScanFile(ctx context.Context, f *scan.File) (*scanclient.Response, error)
	ScanText(ctx context.Context, text string) (*scanclient.Response, error)
}

// OutcomePublisher receives every settled outcome.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, requestID string, kind scan.Kind, outcome scan.Outcome) error
}

// OutcomeRecorder records metrics for every settled outcome.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, kind scan.Kind, outcome scan.Outcome, elapsed time.Duration)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPublisher publishes settled outcomes to p. It may be given more than
// once; publishers are called in order.
func WithPublisher(p OutcomePublisher) Option {
	return func(d *Dispatcher) { d.publishers = append(d.publishers, p) }
}

// WithRecorder records settled outcomes with r.
func WithRecorder(r OutcomeRecorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithTracer overrides the tracer used for dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// Dispatcher issues scans and owns the affordance of each scan kind.
type Dispatcher struct {
	client     ScanClient
	publishers []OutcomePublisher
	recorder   OutcomeRecorder
	tracer     trace.Tracer
	logger     *zap.SugaredLogger

	mu          sync.Mutex
	affordances map[scan.Kind]*scan.Affordance
	busy        map[scan.Kind]bool
}

// New creates a new Dispatcher. The file affordance starts disabled until a
// file is selected; the text affordance starts enabled.
func New(client ScanClient, logger *zap.SugaredLogger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client: client,
		tracer: otel.Tracer("github.com/aiforce-discovery-agent/collectors/scan-console/internal/dispatcher"),
		logger: logger,
		affordances: map[scan.Kind]*scan.Affordance{
			scan.KindFile: {Kind: scan.KindFile, Enabled: false, Label: scan.RestingLabel(scan.KindFile)},
			scan.KindText: {Kind: scan.KindText, Enabled: true, Label: scan.RestingLabel(scan.KindText)},
		},
		busy: make(map[scan.Kind]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Validate checks the local preconditions of a scan. When they fail it
// returns the error outcome to show and false.
func Validate(in scan.Input) (scan.Outcome, bool) {
	if in.Valid() {
		return scan.Outcome{}, true
	}
	if in.Kind == scan.KindFile {
		return scan.Failure(MsgNoFile), false
	}
	return scan.Failure(MsgNoText), false
}

// ScanFile scans f and waits for the outcome. A nil file yields the
// precondition error without contacting the service.
func (d *Dispatcher) ScanFile(ctx context.Context, f *scan.File) (scan.Outcome, error) {
	return d.scan(ctx, scan.FileInput(f))
}

// ScanText scans the trimmed text and waits for the outcome. Blank text yields
// the precondition error without contacting the service.
func (d *Dispatcher) ScanText(ctx context.Context, raw string) (scan.Outcome, error) {
	return d.scan(ctx, scan.TextInput(raw))
}

func (d *Dispatcher) scan(ctx context.Context, in scan.Input) (scan.Outcome, error) {
	if out, ok := Validate(in); !ok {
		return out, nil
	}
	task, err := d.Dispatch(ctx, in)
	if err != nil {
		return scan.Outcome{}, err
	}
	return task.Wait(), nil
}

// Dispatch starts a scan in the background and returns its task. The request
// is detached from ctx cancellation and runs to completion unless the task is
// cancelled. Dispatch returns ErrBusy if a scan of the same kind is in flight.
func (d *Dispatcher) Dispatch(ctx context.Context, in scan.Input) (*Task, error) {
	if _, ok := Validate(in); !ok {
		return nil, fmt.Errorf("invalid %s input", in.Kind)
	}
	if in.Kind == scan.KindText {
		in.Text = strings.TrimSpace(in.Text)
	}

	if err := d.begin(in.Kind); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &Task{
		id:     uuid.New().String(),
		kind:   in.Kind,
		done:   make(chan struct{}),
		cancel: cancel,
	}

	d.logger.Infow("Scan dispatched", "request_id", t.id, "kind", t.kind)

	go d.run(runCtx, t, in)

	return t, nil
}

// Affordance returns the current state of a kind's affordance.
func (d *Dispatcher) Affordance(kind scan.Kind) scan.Affordance {
	d.mu.Lock()
	defer d.mu.Unlock()

	if a, ok := d.affordances[kind]; ok {
		return *a
	}
	return scan.Affordance{Kind: kind, Label: scan.RestingLabel(kind)}
}

// Affordances returns every affordance in display order.
func (d *Dispatcher) Affordances() []scan.Affordance {
	out := make([]scan.Affordance, 0, len(scan.Kinds()))
	for _, k := range scan.Kinds() {
		out = append(out, d.Affordance(k))
	}
	return out
}

// SetEnabled toggles an idle affordance. It has no effect while the kind is
// busy; cleanup re-enables the affordance when the request settles.
func (d *Dispatcher) SetEnabled(kind scan.Kind, enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.busy[kind] {
		return
	}
	if a, ok := d.affordances[kind]; ok {
		a.Enabled = enabled
	}
}

// IsBusy reports whether a scan of kind is in flight.
func (d *Dispatcher) IsBusy(kind scan.Kind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy[kind]
}

func (d *Dispatcher) begin(kind scan.Kind) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.busy[kind] {
		return fmt.Errorf("%s: %w", kind, ErrBusy)
	}
	d.busy[kind] = true
	if a, ok := d.affordances[kind]; ok {
		a.Enabled = false
		a.Label = scan.BusyLabel
	}
	return nil
}

// settle re-enables the affordance and restores its label, whatever the outcome.
func (d *Dispatcher) settle(kind scan.Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.busy[kind] = false
	if a, ok := d.affordances[kind]; ok {
		a.Enabled = true
		a.Label = scan.RestingLabel(kind)
	}
}

func (d *Dispatcher) run(ctx context.Context, t *Task, in scan.Input) {
	defer t.cancel()

	start := time.Now()

	ctx, span := d.tracer.Start(ctx, "scan.dispatch", trace.WithAttributes(
		attribute.String("scan.request_id", t.id),
		attribute.String("scan.kind", string(t.kind)),
	))

	out := d.call(ctx, t, in)
	elapsed := time.Since(start)

	if out.Failed() {
		span.SetStatus(codes.Error, out.Message)
	} else {
		span.SetAttributes(
			attribute.Int("scan.count", out.Count),
			attribute.Int("scan.threats", len(out.Threats)),
		)
	}
	span.End()

	d.logger.Infow("Scan settled",
		"request_id", t.id,
		"kind", t.kind,
		"status", out.Status,
		"count", out.Count,
		"duration", elapsed,
	)

	// Settlement does not wait on the recorder or the publishers.
	t.outcome = out
	d.settle(t.kind)
	close(t.done)

	d.report(ctx, t, out, elapsed)
}

// report hands a settled outcome to the recorder and every publisher in
// order. Errors and panics are logged and go no further.
func (d *Dispatcher) report(ctx context.Context, t *Task, out scan.Outcome, elapsed time.Duration) {
	if d.recorder != nil {
		d.guard(t, "recorder", func() {
			d.recorder.RecordOutcome(ctx, t.kind, out, elapsed)
		})
	}
	for _, p := range d.publishers {
		d.guard(t, "publisher", func() {
			if err := p.PublishOutcome(ctx, t.id, t.kind, out); err != nil {
				d.logger.Warnw("Failed to publish outcome", "request_id", t.id, "error", err)
			}
		})
	}
}

func (d *Dispatcher) guard(t *Task, reporter string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorw("Outcome reporter panicked",
				"request_id", t.id,
				"reporter", reporter,
				"panic", r,
			)
		}
	}()
	fn()
}

// call performs the request. It converts every error, and any panic, into an
// outcome.
func (d *Dispatcher) call(ctx context.Context, t *Task, in scan.Input) (out scan.Outcome) {
	generic := genericMessage(t.kind)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorw("Scan panicked", "request_id", t.id, "kind", t.kind, "panic", r)
			out = scan.Failure(generic)
		}
	}()

	var (
		resp *scanclient.Response
		err  error
	)
	switch t.kind {
	case scan.KindFile:
		resp, err = d.client.ScanFile(ctx, in.File)
	default:
		resp, err = d.client.ScanText(ctx, in.Text)
	}

	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		d.logger.Errorw("Scan request failed", "request_id", t.id, "kind", t.kind, "error", err)
		return scan.Failure(generic)
	}

	d.logger.Debugw("Scan response",
		"request_id", t.id,
		"kind", t.kind,
		"status_code", resp.StatusCode,
		"error", resp.Error,
		"count", resp.Count,
	)

	return normalize(resp)
}

// normalize maps a decoded response to an outcome. An application error takes
// precedence over any threats in the same response.
func normalize(resp *scanclient.Response) scan.Outcome {
	if resp.Error != "" {
		return scan.Failure(resp.Error)
	}
	return scan.Success(resp.Threats, resp.Count)
}

func genericMessage(kind scan.Kind) string {
	if kind == scan.KindFile {
		return MsgFileScanError
	}
	return MsgTextScanError
}
