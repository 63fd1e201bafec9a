// Package notify provides a console implementation of ports.Notifier. The
// dashboard/toast presentation described in spec §1 is explicitly out of
// scope; this is the reference external collaborator the core can run
// against in a headless process or in tests.
package notify

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fincept/gateway/internal/ports"
)

// Console writes notifications as single lines to an io.Writer (os.Stdout
// by default).
type Console struct {
	out io.Writer
	now func() time.Time
}

var _ ports.Notifier = (*Console)(nil)

// New returns a Console notifier writing to os.Stdout.
func New() *Console {
	return &Console{out: os.Stdout, now: time.Now}
}

func (c *Console) emit(level, title, message, brokerID string) {
	ts := c.now().Format(time.RFC3339)
	if brokerID != "" {
		fmt.Fprintf(c.out, "[%s] %s %s: %s (broker=%s)\n", ts, level, title, message, brokerID)
		return
	}
	fmt.Fprintf(c.out, "[%s] %s %s: %s\n", ts, level, title, message)
}

func (c *Console) Info(title, message, brokerID string)    { c.emit("INFO", title, message, brokerID) }
func (c *Console) Success(title, message, brokerID string) { c.emit("SUCCESS", title, message, brokerID) }
func (c *Console) Warning(title, message, brokerID string) { c.emit("WARNING", title, message, brokerID) }
func (c *Console) Error(title, message, brokerID string)   { c.emit("ERROR", title, message, brokerID) }
