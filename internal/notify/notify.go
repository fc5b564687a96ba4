// Package notify delivers user-facing success, warning and error messages.
// Delivery is fire-and-forget: sinks never return errors to the caller.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"habit-sync/internal/logs"
)

// Notifier is the capability the sync core depends on for user feedback.
type Notifier interface {
	Success(msg string)
	Warning(msg string)
	Error(msg string)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Success(string) {}
func (Nop) Warning(string) {}
func (Nop) Error(string)   {}

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50fa7b"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f1fa8c"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5555"))
	timeStyle    = lipgloss.NewStyle().Faint(true)
)

// Console renders notifications as styled single lines on w.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{out: w, now: time.Now}
}

func (c *Console) Success(msg string) { c.write(successStyle, "✓", msg) }
func (c *Console) Warning(msg string) { c.write(warningStyle, "!", msg) }
func (c *Console) Error(msg string)   { c.write(errorStyle, "✗", msg) }

func (c *Console) write(style lipgloss.Style, icon, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stamp := timeStyle.Render(c.now().Format("15:04:05"))
	_, _ = fmt.Fprintf(c.out, "%s %s %s\n", stamp, style.Render(icon), msg)
}

// Logged mirrors every notification into a logger before passing it on.
type Logged struct {
	Next   Notifier
	Logger *logs.Logger
}

func (l Logged) Success(msg string) {
	l.Logger.Info(msg)
	l.Next.Success(msg)
}

func (l Logged) Warning(msg string) {
	l.Logger.Warn(msg)
	l.Next.Warning(msg)
}

func (l Logged) Error(msg string) {
	l.Logger.Warn("notified error: " + msg)
	l.Next.Error(msg)
}

// Recorder keeps every notification in memory. Useful for tests and the
// admin API.
type Recorder struct {
	mu      sync.Mutex
	entries []Notification
}

// Notification is one recorded message.
type Notification struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (r *Recorder) Success(msg string) { r.add("success", msg) }
func (r *Recorder) Warning(msg string) { r.add("warning", msg) }
func (r *Recorder) Error(msg string)   { r.add("error", msg) }

func (r *Recorder) add(kind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Notification{Kind: kind, Message: msg})
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Notification, len(r.entries))
	copy(out, r.entries)
	return out
}

// Kinds returns only the kinds, in order.
func (r *Recorder) Kinds() []string {
	all := r.All()
	out := make([]string, len(all))
	for i, n := range all {
		out[i] = n.Kind
	}
	return out
}
