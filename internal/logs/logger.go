package logs

import (
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
	DEBUG Level = "DEBUG"
)

// levelPriority defines the priority of each log level
// higher value= more severe
var levelPriority = map[Level]int{
	DEBUG: 1,
	INFO:  2,
	WARN:  3,
	ERROR: 4,
}

// ParseLevel maps a config string onto a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case DEBUG:
		return DEBUG
	case WARN:
		return WARN
	case ERROR:
		return ERROR
	default:
		return INFO
	}
}

type Entry struct {
	TimeStamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Namespace string            `json:"namespace,omitempty"`
	Message   string            `json:"message"`
	Stack     string            `json:"stack,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
}

// ErrorCallback receives every ERROR entry, e.g. to forward it to a crash reporter.
type ErrorCallback func(Entry)

// ring is the buffer shared by a logger and all of its namespaced children.
type ring struct {
	mu       sync.Mutex
	entries  []Entry
	maxSize  int
	level    Level
	callback ErrorCallback
}

type Logger struct {
	ring      *ring
	namespace string
}

// level: minimum log level to record(e.g., INFO, WARN, ERROR,DEBUG)
//
//maxsize:maximum number of log entries kept in memory
func NewLogger(maxSize int, level Level) *Logger {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Logger{
		ring: &ring{
			entries: make([]Entry, 0, maxSize),
			maxSize: maxSize,
			level:   level,
		},
	}
}

// With returns a child logger writing into the same buffer under namespace.
func (l *Logger) With(namespace string) *Logger {
	ns := namespace
	if l.namespace != "" {
		ns = l.namespace + "." + namespace
	}
	return &Logger{ring: l.ring, namespace: ns}
}

// SetErrorCallback installs the sink invoked for every ERROR entry.
func (l *Logger) SetErrorCallback(cb ErrorCallback) {
	l.ring.mu.Lock()
	defer l.ring.mu.Unlock()
	l.ring.callback = cb
}

// log is the internal logging function
// it applies level filtering and ring buffer behavior
func (l *Logger) log(entry Entry) {
	r := l.ring
	//filter logs below the current level
	if levelPriority[entry.Level] < levelPriority[r.level] {
		return
	}

	entry.TimeStamp = time.Now()
	entry.Namespace = l.namespace

	r.mu.Lock()
	if len(r.entries) >= r.maxSize {
		//remove oldest entry(ring behavior)
		r.entries = r.entries[1:]
	}
	r.entries = append(r.entries, entry)
	cb := r.callback
	r.mu.Unlock()

	if cb != nil && entry.Level == ERROR {
		cb(entry)
	}
}

func (l *Logger) Debug(msg string) {
	l.log(Entry{Level: DEBUG, Message: msg})
}

func (l *Logger) Info(msg string) {
	l.log(Entry{Level: INFO, Message: msg})
}

func (l *Logger) Warn(msg string) {
	l.log(Entry{Level: WARN, Message: msg})
}

func (l *Logger) Error(msg string) {
	l.log(Entry{Level: ERROR, Message: msg})
}

// ErrorErr records err with a captured stack and optional key/value context.
func (l *Logger) ErrorErr(msg string, err error, ctx map[string]string) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	l.log(Entry{
		Level:   ERROR,
		Message: msg,
		Stack:   string(debug.Stack()),
		Context: copyContext(ctx),
	})
}

// WarnErr records a warning carrying err and optional context.
func (l *Logger) WarnErr(msg string, err error, ctx map[string]string) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	l.log(Entry{Level: WARN, Message: msg, Context: copyContext(ctx)})
}

func (l *Logger) GetLast(n int) []Entry {
	r := l.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > len(r.entries) {
		out := make([]Entry, len(r.entries))
		copy(out, r.entries)
		return out
	}

	start := len(r.entries) - n
	out := make([]Entry, n)
	copy(out, r.entries[start:])
	return out
}

func copyContext(ctx map[string]string) map[string]string {
	if len(ctx) == 0 {
		return nil
	}
	out := make(map[string]string, len(ctx))
	for k, v := range ctx {
		out[k] = v
	}
	return out
}
