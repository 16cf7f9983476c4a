package dispatcher

import (
	"context"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

// Task is a scan request in flight.
type Task struct {
	id      string
	kind    scan.Kind
	done    chan struct{}
	cancel  context.CancelFunc
	outcome scan.Outcome
}

// ID returns the request ID.
func (t *Task) ID() string { return t.id }

// Kind returns the scan kind.
func (t *Task) Kind() scan.Kind { return t.kind }

// Done is closed once the outcome is available and the affordance has been
// restored.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task settles and returns its outcome.
func (t *Task) Wait() scan.Outcome {
	<-t.done
	return t.outcome
}

// Outcome returns the outcome if the task has settled.
func (t *Task) Outcome() (scan.Outcome, bool) {
	select {
	case <-t.done:
		return t.outcome, true
	default:
		return scan.Outcome{}, false
	}
}

// Cancel aborts the request. A cancelled request settles with the generic
// transport error outcome.
func (t *Task) Cancel() { t.cancel() }
