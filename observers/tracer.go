package observers

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/anggasct/statechart"
)

// LineTracer writes one line per dispatch: the event name, then the labels
// of the traced actions and the configuration reached after each
// run-to-completion pass, separated by " >". A start reads
//
//	: 'A_entry''A_do'A
//
// and an event that fires nothing leaves an empty line body, "Event2: ".
// Actions show up in the trace only when built with Action.
type LineTracer struct {
	statechart.BaseObserver

	mutex   sync.Mutex
	out     io.Writer
	line    strings.Builder
	segment bool
	lines   []string
}

var _ statechart.StepObserver = (*LineTracer)(nil)

// NewLineTracer creates a tracer collecting its lines in memory and, when
// out is not nil, also writing them to out
func NewLineTracer(out io.Writer) *LineTracer {
	return &LineTracer{out: out}
}

// Action returns an action that writes 'label' into the current line
func (t *LineTracer) Action(label string) statechart.ActionFunc {
	return func(ctx statechart.Context) error {
		t.mutex.Lock()
		defer t.mutex.Unlock()

		if !t.segment {
			t.line.WriteString(" >")
			t.segment = true
		}
		t.line.WriteString("'" + label + "'")
		return nil
	}
}

// OnDispatchStarted opens a line for event
func (t *LineTracer) OnDispatchStarted(event statechart.Event, ctx statechart.Context) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.line.Reset()
	t.line.WriteString(name(event) + ": ")
	t.segment = true
}

// OnStep appends the configuration reached by a pass
func (t *LineTracer) OnStep(configuration string, ctx statechart.Context) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.segment {
		t.line.WriteString(" >")
	}
	t.line.WriteString(configuration)
	t.segment = false
}

// OnDispatchFinished closes the line
func (t *LineTracer) OnDispatchFinished(event statechart.Event, consumed bool, elapsed time.Duration, ctx statechart.Context) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	line := t.line.String()
	t.lines = append(t.lines, line)
	t.line.Reset()
	if t.out != nil {
		_, _ = fmt.Fprintln(t.out, line)
	}
}

// Lines returns the completed lines
func (t *LineTracer) Lines() []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]string(nil), t.lines...)
}

// String returns the completed lines, each terminated by a newline
func (t *LineTracer) String() string {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var sb strings.Builder
	for _, line := range t.lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Reset drops the collected lines
func (t *LineTracer) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.lines = nil
	t.line.Reset()
	t.segment = false
}
