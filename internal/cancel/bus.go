package cancel

import (
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/jbigot/pkg-builder/internal/models"
)

// Bus carries the process-wide termination flag and the registry of live
// child processes. Every component holds the same *Bus; workers call Check
// at each suspension point, and RequestCancel fans a polite termination
// signal out to every registered child.
type Bus struct {
	requested atomic.Bool

	mu   sync.Mutex
	live map[*exec.Cmd]struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{live: make(map[*exec.Cmd]struct{})}
}

// Check returns models.ErrCancelled once cancellation has been requested.
// It is the sole way the core discovers cancellation.
func (b *Bus) Check() error {
	if b.requested.Load() {
		return models.ErrCancelled
	}
	return nil
}

// Cancelled reports whether cancellation has been requested without
// producing an error.
func (b *Bus) Cancelled() bool {
	return b.requested.Load()
}

// RequestCancel sets the termination flag and signals every live child.
// It does not wait for the children to exit. Idempotent.
func (b *Bus) RequestCancel() {
	if b.requested.Swap(true) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for cmd := range b.live {
		if cmd.Process == nil {
			continue
		}
		logrus.Debugf("signalling %s (pid %d)", cmd.Path, cmd.Process.Pid)
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
}

// Register adds a spawned child to the live set. If cancellation was
// requested while the child was being spawned, it is signalled right away.
func (b *Bus) Register(cmd *exec.Cmd) {
	b.mu.Lock()
	b.live[cmd] = struct{}{}
	b.mu.Unlock()
	if b.requested.Load() && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
}

// Unregister removes a child from the live set on any exit path.
func (b *Bus) Unregister(cmd *exec.Cmd) {
	b.mu.Lock()
	delete(b.live, cmd)
	b.mu.Unlock()
}
