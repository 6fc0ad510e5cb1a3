package notify

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Severity is the kind of toast being shown.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Sink renders user-facing notifications.
type Sink interface {
	Success(title, description string)
	Error(title, description string)
	Warning(title, description string)
	Info(title, description string)
}

// Notice is a single notification ready to be sent to a Sink.
type Notice struct {
	Severity    Severity
	Title       string
	Description string
}

// Send delivers the notice to the sink using its severity.
func (n Notice) Send(sink Sink) {
	if sink == nil {
		return
	}

	switch n.Severity {
	case SeveritySuccess:
		sink.Success(n.Title, n.Description)
	case SeverityWarning:
		sink.Warning(n.Title, n.Description)
	case SeverityInfo:
		sink.Info(n.Title, n.Description)
	default:
		sink.Error(n.Title, n.Description)
	}
}

// SendThrottled delivers the notice only if the throttle allows it.
// It reports whether the notice was shown.
func (n Notice) SendThrottled(sink Sink, throttle *Throttle) bool {
	if throttle != nil && !throttle.Allow() {
		return false
	}
	n.Send(sink)
	return true
}

// LogSink renders notifications as log lines.
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink creates a sink that writes every notification to the logger.
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Success(title, description string) {
	s.entry(SeveritySuccess).Info(title + ": " + description)
}

func (s *LogSink) Error(title, description string) {
	s.entry(SeverityError).Error(title + ": " + description)
}

func (s *LogSink) Warning(title, description string) {
	s.entry(SeverityWarning).Warn(title + ": " + description)
}

func (s *LogSink) Info(title, description string) {
	s.entry(SeverityInfo).Info(title + ": " + description)
}

func (s *LogSink) entry(severity Severity) *logrus.Entry {
	return s.logger.WithField("toast", string(severity))
}

// Recorder is a Sink that keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Success(title, description string) { r.add(SeveritySuccess, title, description) }
func (r *Recorder) Error(title, description string)   { r.add(SeverityError, title, description) }
func (r *Recorder) Warning(title, description string) { r.add(SeverityWarning, title, description) }
func (r *Recorder) Info(title, description string)    { r.add(SeverityInfo, title, description) }

func (r *Recorder) add(severity Severity, title, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Severity: severity, Title: title, Description: description})
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}
