package diag

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tliron/commonlog"
)

// Message is one structured diagnostic.
type Message struct {
	Method   string
	Offset   int // -1 when not tied to an instruction
	Kind     Kind
	Severity Severity
	Text     string
}

func (m Message) String() string {
	if m.Offset < 0 {
		return fmt.Sprintf("%s: %s [%s]: %s", m.Method, m.Severity, m.Kind, m.Text)
	}
	return fmt.Sprintf("%s@%04X: %s [%s]: %s", m.Method, m.Offset, m.Severity, m.Kind, m.Text)
}

// Sink receives diagnostics. Implementations must be safe for concurrent
// use; workers share sinks.
type Sink interface {
	Report(m Message)
}

// Discard drops every message.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(Message) {}

// Collector keeps messages in memory.
type Collector struct {
	mu   sync.Mutex
	msgs []Message
}

// Report appends m.
func (c *Collector) Report(m Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, m)
	c.mu.Unlock()
}

// Messages returns a copy of the collected messages.
func (c *Collector) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.msgs)
}

// Kinds returns the kinds of the collected messages in order.
func (c *Collector) Kinds() []Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Kind, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.Kind
	}
	return out
}

// Has reports whether a message of kind k was collected.
func (c *Collector) Has(k Kind) bool {
	return slices.Contains(c.Kinds(), k)
}

// Reset drops every collected message.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
}

// LogSink writes messages to a commonlog logger: errors at error level,
// warnings at warning level, hidden messages at debug level.
type LogSink struct {
	Log commonlog.Logger
}

// NewLogSink returns a sink logging under name.
func NewLogSink(name string) *LogSink {
	return &LogSink{Log: commonlog.GetLogger(name)}
}

// Report logs m.
func (s *LogSink) Report(m Message) {
	kv := []any{"method", m.Method, "offset", m.Offset, "kind", m.Kind.String()}
	switch m.Severity {
	case SeverityError:
		s.Log.Error(m.Text, kv...)
	case SeverityWarning:
		s.Log.Warning(m.Text, kv...)
	default:
		s.Log.Debug(m.Text, kv...)
	}
}

// Tee fans a message out to several sinks.
type Tee []Sink

// Report forwards m to every sink.
func (t Tee) Report(m Message) {
	for _, s := range t {
		s.Report(m)
	}
}
