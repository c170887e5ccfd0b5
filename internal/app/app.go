// Package app wires the emulation, analysis and output stages of the
// disassembler into a processing pipeline.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/log"

	"github.com/retroenv/sidgodisasm/internal/analyzer"
	"github.com/retroenv/sidgodisasm/internal/cli"
	"github.com/retroenv/sidgodisasm/internal/cpu"
	"github.com/retroenv/sidgodisasm/internal/disasm"
	"github.com/retroenv/sidgodisasm/internal/emulator"
	"github.com/retroenv/sidgodisasm/internal/format"
	"github.com/retroenv/sidgodisasm/internal/label"
	"github.com/retroenv/sidgodisasm/internal/options"
	"github.com/retroenv/sidgodisasm/internal/sid"
)

// fallback addresses for raw binary input without explicit flags
const (
	defaultLoadAddress = 0x1000
	defaultInitAddress = 0x1000
	defaultPlayAddress = 0x1003
)

// Run disassembles a single SID music file.
func Run(logger *log.Logger, opts options.Program, disasmOpts options.Disassembler,
	version string) error {

	c := cpu.New(logger)
	loader := sid.NewLoader(logger, c)

	if err := loadInput(logger, loader, opts); err != nil {
		return err
	}
	if err := applyOverrides(loader, opts); err != nil {
		return err
	}
	if loader.PlayAddress() == 0 {
		return fmt.Errorf("file '%s' has no play address, pass one with -play", opts.Input)
	}

	loadAddr := loader.LoadAddress()
	endAddr := loadAddr + loader.DataSize()

	mem := analyzer.New(logger, c.AccessMap(), loadAddr, endAddr)
	labels := label.New(logger, loadAddr, endAddr)
	formatter := format.New(c, labels, disasmOpts.ZeroUnusedBytes)
	writer := disasm.NewWriter(logger, disasmOpts, version, c, loader, mem, labels, formatter)

	// relocation discovery taps every pointer dereference during emulation
	c.SetOnIndirectRead(writer.AddIndirectAccess)

	emu := emulator.New(logger, c, loader)
	if err := emu.Run(opts); err != nil {
		return fmt.Errorf("running emulation: %w", err)
	}

	mem.Analyze()
	writer.ProcessIndirectAccesses()
	labels.GenerateLabels(mem)
	labels.ApplySubdivisions()

	if opts.Debug {
		if err := writer.Relocations().Dump(os.Stderr); err != nil {
			return fmt.Errorf("dumping relocation table: %w", err)
		}
	}

	output := opts.Output
	if output == "" {
		output = GenerateOutputFilename(opts.Input)
	}

	unusedBytes, err := writer.GenerateAsmFile(output, loadAddr,
		loader.InitAddress(), loader.PlayAddress())
	if err != nil {
		return fmt.Errorf("generating assembly file: %w", err)
	}

	stats := emu.Stats()
	logger.Info("Disassembly complete",
		log.String("output", output),
		log.Int("relocations", writer.Relocations().Len()),
		log.Int("unusedBytes", unusedBytes),
		log.Int("avgStepsPerFrame", int(stats.AverageSteps)),
	)
	return nil
}

// GenerateOutputFilename derives the output file name from the input file.
func GenerateOutputFilename(inputFile string) string {
	ext := filepath.Ext(inputFile)
	return inputFile[:len(inputFile)-len(ext)] + ".asm"
}

// loadInput loads the music file based on its extension.
func loadInput(logger *log.Logger, loader *sid.Loader, opts options.Program) error {
	ext := strings.ToLower(filepath.Ext(opts.Input))
	switch ext {
	case ".sid":
		return loader.LoadSID(opts.Input)

	case ".prg":
		initAddr, playAddr, err := parsePlayerAddresses(opts, 0, defaultPlayAddress)
		if err != nil {
			return err
		}
		return loader.LoadPRG(opts.Input, initAddr, playAddr)

	case ".bin":
		loadAddr, err := cli.ParseAddress(opts.LoadAddress)
		if err != nil {
			return err
		}
		if loadAddr == 0 {
			loadAddr = defaultLoadAddress
		}
		initAddr, playAddr, err := parsePlayerAddresses(opts, defaultInitAddress, defaultPlayAddress)
		if err != nil {
			return err
		}
		return loader.LoadBIN(opts.Input, loadAddr, initAddr, playAddr)

	default:
		logger.Debug("Unknown file extension, loading as SID",
			log.String("file", opts.Input))
		return loader.LoadSID(opts.Input)
	}
}

func parsePlayerAddresses(opts options.Program, defaultInit, defaultPlay uint16) (uint16, uint16, error) {
	initAddr, err := cli.ParseAddress(opts.InitAddress)
	if err != nil {
		return 0, 0, err
	}
	if opts.InitAddress == "" {
		initAddr = defaultInit
	}

	playAddr, err := cli.ParseAddress(opts.PlayAddress)
	if err != nil {
		return 0, 0, err
	}
	if opts.PlayAddress == "" {
		playAddr = defaultPlay
	}
	return initAddr, playAddr, nil
}

// applyOverrides applies command line overrides to the loaded header. The
// load address is consumed at load time, the data placement cannot change
// after the copy.
func applyOverrides(loader *sid.Loader, opts options.Program) error {
	if opts.InitAddress != "" {
		addr, err := cli.ParseAddress(opts.InitAddress)
		if err != nil {
			return err
		}
		loader.SetInitAddress(addr)
	}
	if opts.PlayAddress != "" {
		addr, err := cli.ParseAddress(opts.PlayAddress)
		if err != nil {
			return err
		}
		loader.SetPlayAddress(addr)
	}

	if opts.Title != "" {
		loader.SetTitle(opts.Title)
	}
	if opts.Author != "" {
		loader.SetAuthor(opts.Author)
	}
	if opts.Copyright != "" {
		loader.SetCopyright(opts.Copyright)
	}
	return nil
}
