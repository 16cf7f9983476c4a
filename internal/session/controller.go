package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/dispatcher"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/render"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

// Command is a typed user action handled by the Controller.
type Command interface {
	command() string
}

// SelectFileCommand changes the file selection. A nil File clears it.
type SelectFileCommand struct {
	File *scan.File
}

// EnterTextCommand replaces the text field.
type EnterTextCommand struct {
	Text string
}

// ScanFileCommand scans the selected file.
type ScanFileCommand struct{}

// ScanTextCommand scans the text field.
type ScanTextCommand struct{}

func (SelectFileCommand) command() string { return "select_file" }
func (EnterTextCommand) command() string  { return "enter_text" }
func (ScanFileCommand) command() string   { return "scan_file" }
func (ScanTextCommand) command() string   { return "scan_text" }

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	States       []scan.UIState    `json:"states"`
	Affordances  []scan.Affordance `json:"affordances"`
	SelectedFile string            `json:"selected_file"`
	Results      render.View       `json:"results"`
}

// Controller is the single owner of a console session.
type Controller struct {
	capture    *Capture
	dispatcher *dispatcher.Dispatcher
	results    *render.Results
	logger     *zap.SugaredLogger

	mu     sync.Mutex
	states map[scan.Kind]scan.UIState
}

// NewController creates a controller with idle states and a hidden results area.
func NewController(d *dispatcher.Dispatcher, logger *zap.SugaredLogger) *Controller {
	states := make(map[scan.Kind]scan.UIState, len(scan.Kinds()))
	for _, k := range scan.Kinds() {
		states[k] = scan.NewState(k)
	}

	return &Controller{
		capture:    NewCapture(d),
		dispatcher: d,
		results:    render.NewResults(),
		logger:     logger,
		states:     states,
	}
}

// Capture returns the session's input capture.
func (c *Controller) Capture() *Capture { return c.capture }

// Results returns the session's results area.
func (c *Controller) Results() *render.Results { return c.results }

// Handle runs a command. Scan commands return the rendered outcome; input
// commands return nil. The only error is dispatcher.ErrBusy for a scan whose
// kind is already in flight.
func (c *Controller) Handle(ctx context.Context, cmd Command) (*scan.Outcome, error) {
	switch cmd := cmd.(type) {
	case SelectFileCommand:
		c.capture.SelectFile(cmd.File)
		return nil, nil
	case EnterTextCommand:
		c.capture.SetText(cmd.Text)
		return nil, nil
	case ScanFileCommand:
		out, err := c.scan(ctx, scan.FileInput(c.capture.SelectedFile()))
		return out, err
	case ScanTextCommand:
		out, err := c.scan(ctx, scan.TextInput(c.capture.ReadText()))
		return out, err
	default:
		return nil, fmt.Errorf("unknown command %T", cmd)
	}
}

func (c *Controller) scan(ctx context.Context, in scan.Input) (*scan.Outcome, error) {
	task, out, err := c.begin(ctx, in)
	if err != nil || task == nil {
		return out, err
	}

	settled := task.Wait()

	c.mu.Lock()
	c.apply(in.Kind, scan.Settled(task.ID(), settled))
	c.mu.Unlock()

	c.results.Render(settled)
	return &settled, nil
}

// begin validates and dispatches under the session lock so that the state
// of a kind is Busy for exactly as long as its request is outstanding. It
// returns a nil task when the scan was rejected locally.
func (c *Controller) begin(ctx context.Context, in scan.Input) (*dispatcher.Task, *scan.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.states[in.Kind].Phase == scan.PhaseBusy {
		return nil, nil, fmt.Errorf("%s: %w", in.Kind, dispatcher.ErrBusy)
	}

	if out, ok := dispatcher.Validate(in); !ok {
		c.apply(in.Kind, scan.Rejected(out))
		c.results.Render(out)
		return nil, &out, nil
	}

	task, err := c.dispatcher.Dispatch(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	c.apply(in.Kind, scan.Dispatched(task.ID()))

	return task, nil, nil
}

// apply transitions the state of kind. c.mu must be held.
func (c *Controller) apply(kind scan.Kind, ev scan.Event) {
	next, err := scan.Transition(c.states[kind], ev)
	if err != nil {
		c.logger.Warnw("Ignoring state event", "kind", kind, "event", ev.Type, "error", err)
		return
	}
	c.states[kind] = next
}

// State returns the state of one scan kind.
func (c *Controller) State(kind scan.Kind) scan.UIState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[kind]
}

// Snapshot returns a copy of the whole session.
func (c *Controller) Snapshot() Snapshot {
	states := make([]scan.UIState, 0, len(scan.Kinds()))
	for _, k := range scan.Kinds() {
		states = append(states, c.State(k))
	}

	return Snapshot{
		States:       states,
		Affordances:  c.dispatcher.Affordances(),
		SelectedFile: c.capture.DisplayName(),
		Results:      c.results.View(),
	}
}
