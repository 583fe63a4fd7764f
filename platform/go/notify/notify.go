// Package notify carries user-facing outcome messages from the workspace to
// whatever presents them.
package notify

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Notifier receives one message per completed user action.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Nop discards every message.
type Nop struct{}

func (Nop) Success(string) {}
func (Nop) Error(string)   {}

// Console prints successes in green and errors in red.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

// NewConsole writes successes to stdout and errors to stderr.
func NewConsole() *Console {
	return &Console{out: os.Stdout, err: os.Stderr}
}

// NewConsoleTo writes to the given writers. Colour follows color.NoColor.
func NewConsoleTo(out, errOut io.Writer) *Console {
	return &Console{out: out, err: errOut}
}

func (c *Console) Success(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	color.New(color.FgGreen).Fprintf(c.out, "✔ %s\n", message)
}

func (c *Console) Error(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	color.New(color.FgRed).Fprintf(c.err, "✖ %s\n", message)
}

// Recorder keeps messages in memory.
type Recorder struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (r *Recorder) Success(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, message)
}

func (r *Recorder) Error(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

// Successes returns a copy of the recorded success messages.
func (r *Recorder) Successes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.successes...)
}

// Errors returns a copy of the recorded error messages.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}
