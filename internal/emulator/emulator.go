// Package emulator drives the player routines of a loaded SID through the
// tracking CPU to collect access and provenance traces.
package emulator

import (
	"fmt"

	"github.com/retroenv/retrogolib/log"

	"github.com/retroenv/sidgodisasm/internal/options"
)

// frames executed before the measured run, initialization routines of many
// players unpack data during the first calls
const preAnalysisFrames = 100

// playerCPU is the CPU surface needed to run the player routines.
type playerCPU interface {
	ResetRegistersAndFlags()
	ExecuteFunction(address uint16) error
	Steps() uint64
}

// memoryKeeper backs up and restores the emulated memory around a run.
type memoryKeeper interface {
	BackupMemory()
	RestoreMemory()
	InitAddress() uint16
	PlayAddress() uint16
}

// Stats holds per frame instruction counts of the measured run.
type Stats struct {
	FramesExecuted uint64
	AverageSteps   uint64
	MaxSteps       uint64
}

// Emulator runs the init and play routines for a number of frames.
type Emulator struct {
	logger *log.Logger
	cpu    playerCPU
	music  memoryKeeper

	stats Stats
}

// New creates an emulator for the loaded music.
func New(logger *log.Logger, cpu playerCPU, music memoryKeeper) *Emulator {
	return &Emulator{
		logger: logger,
		cpu:    cpu,
		music:  music,
	}
}

// Run executes the init routine and the configured number of play frames.
// The memory is restored to its pre-run state afterwards, the access and
// provenance traces in the CPU survive.
func (e *Emulator) Run(opts options.Program) error {
	e.music.BackupMemory()
	defer e.music.RestoreMemory()

	initAddr := e.music.InitAddress()
	playAddr := e.music.PlayAddress()

	e.logger.Debug("Running SID emulation",
		log.String("init", fmt.Sprintf("$%04X", initAddr)),
		log.String("play", fmt.Sprintf("$%04X", playAddr)),
		log.Int("frames", opts.Frames),
	)

	e.cpu.ResetRegistersAndFlags()
	if err := e.cpu.ExecuteFunction(initAddr); err != nil {
		return fmt.Errorf("executing init routine: %w", err)
	}

	// a short playback pass first, it surfaces memory unpacked by init
	if err := e.runFrames(playAddr, preAnalysisFrames, opts.CallsPerFrame, nil); err != nil {
		return fmt.Errorf("executing pre-analysis frames: %w", err)
	}

	// reset the player state for the measured run
	e.cpu.ResetRegistersAndFlags()
	if err := e.cpu.ExecuteFunction(initAddr); err != nil {
		return fmt.Errorf("re-executing init routine: %w", err)
	}

	e.stats = Stats{}
	if err := e.runFrames(playAddr, opts.Frames, opts.CallsPerFrame, &e.stats); err != nil {
		return fmt.Errorf("executing play frames: %w", err)
	}

	e.logger.Debug("SID emulation complete",
		log.Int("avgSteps", int(e.stats.AverageSteps)),
		log.Int("maxSteps", int(e.stats.MaxSteps)),
	)
	return nil
}

// Stats returns the statistics of the measured run.
func (e *Emulator) Stats() Stats {
	return e.stats
}

func (e *Emulator) runFrames(playAddr uint16, frames, callsPerFrame int, stats *Stats) error {
	var totalSteps uint64
	lastSteps := e.cpu.Steps()

	for frame := 0; frame < frames; frame++ {
		for call := 0; call < callsPerFrame; call++ {
			e.cpu.ResetRegistersAndFlags()
			if err := e.cpu.ExecuteFunction(playAddr); err != nil {
				return fmt.Errorf("frame %d: %w", frame, err)
			}
		}

		if stats == nil {
			continue
		}

		current := e.cpu.Steps()
		frameSteps := current - lastSteps
		lastSteps = current

		totalSteps += frameSteps
		if frameSteps > stats.MaxSteps {
			stats.MaxSteps = frameSteps
		}
		stats.FramesExecuted++
	}

	if stats != nil && stats.FramesExecuted > 0 {
		stats.AverageSteps = totalSteps / stats.FramesExecuted
	}
	return nil
}
