package emulator

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"

	"github.com/retroenv/sidgodisasm/internal/options"
)

type mockCPU struct {
	steps         uint64
	stepsPerCall  uint64
	resets        int
	executedAddrs []uint16
	failAddr      uint16
}

func (m *mockCPU) ResetRegistersAndFlags() {
	m.resets++
}

func (m *mockCPU) ExecuteFunction(address uint16) error {
	if m.failAddr != 0 && address == m.failAddr {
		return errors.New("execution failed")
	}
	m.executedAddrs = append(m.executedAddrs, address)
	m.steps += m.stepsPerCall
	return nil
}

func (m *mockCPU) Steps() uint64 {
	return m.steps
}

type mockMusic struct {
	backups  int
	restores int
}

func (m *mockMusic) BackupMemory()       { m.backups++ }
func (m *mockMusic) RestoreMemory()      { m.restores++ }
func (m *mockMusic) InitAddress() uint16 { return 0x1000 }
func (m *mockMusic) PlayAddress() uint16 { return 0x1003 }

func TestRun(t *testing.T) {
	logger := log.NewTestLogger(t)
	cpu := &mockCPU{stepsPerCall: 50}
	music := &mockMusic{}
	e := New(logger, cpu, music)

	opts := options.Program{Frames: 10, CallsPerFrame: 2}
	assert.NoError(t, e.Run(opts))

	// init twice, pre-analysis frames plus measured frames with two calls each
	initCalls := 0
	playCalls := 0
	for _, addr := range cpu.executedAddrs {
		switch addr {
		case 0x1000:
			initCalls++
		case 0x1003:
			playCalls++
		}
	}
	assert.Equal(t, 2, initCalls)
	assert.Equal(t, (100+10)*2, playCalls)

	assert.Equal(t, 1, music.backups)
	assert.Equal(t, 1, music.restores)

	stats := e.Stats()
	assert.Equal(t, uint64(10), stats.FramesExecuted)
	assert.Equal(t, uint64(100), stats.AverageSteps)
	assert.Equal(t, uint64(100), stats.MaxSteps)
}

func TestRunInitFailure(t *testing.T) {
	logger := log.NewTestLogger(t)
	cpu := &mockCPU{failAddr: 0x1000}
	music := &mockMusic{}
	e := New(logger, cpu, music)

	err := e.Run(options.Program{Frames: 1, CallsPerFrame: 1})
	assert.ErrorContains(t, err, "init routine")

	// memory is restored even when the run fails
	assert.Equal(t, 1, music.restores)
}

func TestRunPlayFailure(t *testing.T) {
	logger := log.NewTestLogger(t)
	cpu := &mockCPU{failAddr: 0x1003}
	music := &mockMusic{}
	e := New(logger, cpu, music)

	err := e.Run(options.Program{Frames: 1, CallsPerFrame: 1})
	assert.ErrorContains(t, err, "pre-analysis")
	assert.Equal(t, 1, music.restores)
}
