package cancel

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbigot/pkg-builder/internal/models"
)

func TestCheckBeforeAndAfterCancel(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Check())
	assert.False(t, bus.Cancelled())

	bus.RequestCancel()
	assert.True(t, bus.Cancelled())
	assert.ErrorIs(t, bus.Check(), models.ErrCancelled)

	// idempotent
	bus.RequestCancel()
	assert.ErrorIs(t, bus.Check(), models.ErrCancelled)
}

func TestRequestCancelSignalsLiveProcesses(t *testing.T) {
	bus := NewBus()

	cmd := exec.Command("sleep", "60")
	require.NoError(t, cmd.Start())
	bus.Register(cmd)
	defer bus.Unregister(cmd)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	bus.RequestCancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("child not terminated after RequestCancel")
	}
}

func TestRegisterAfterCancelSignalsImmediately(t *testing.T) {
	bus := NewBus()
	bus.RequestCancel()

	cmd := exec.Command("sleep", "60")
	require.NoError(t, cmd.Start())
	bus.Register(cmd)
	defer bus.Unregister(cmd)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("child registered after cancel was not signalled")
	}
}

func TestUnregisteredProcessIsLeftAlone(t *testing.T) {
	bus := NewBus()
	cmd := exec.Command("sleep", "0.1")
	require.NoError(t, cmd.Start())
	bus.Register(cmd)
	bus.Unregister(cmd)

	bus.RequestCancel()
	assert.NoError(t, cmd.Wait())
}
