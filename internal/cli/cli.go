// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/retroenv/sidgodisasm/internal/options"
	"github.com/xyproto/env/v2"
)

// ParseFlags parses command line flags and returns program and disassembler options
func ParseFlags() (options.Program, options.Disassembler, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	disasmOptions := options.NewDisassembler()
	readDisasmOptionFlags(flags, &disasmOptions)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil || len(args) == 0 {
		return opts, disasmOptions, &UsageError{flags: flags}
	}

	if err := validateArgs(args); err != nil {
		return opts, disasmOptions, err
	}

	opts.Input = args[0]
	return opts, disasmOptions, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: sidgodisasm [options] <file to disassemble>\n\n")
	e.flags.PrintDefaults()
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after file to disassemble, please pass the file to disassemble as last argument", arg),
			}
		}
	}
	return nil
}

// ParseAddress parses a 16 bit address given as $hex, 0xhex or decimal.
func ParseAddress(s string) (uint16, error) {
	if s == "" {
		return 0, nil
	}

	base := 10
	digits := s
	switch {
	case strings.HasPrefix(s, "$"):
		base = 16
		digits = s[1:]
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		base = 16
		digits = s[2:]
	}

	value, err := strconv.ParseUint(digits, base, 16)
	if err != nil {
		return 0, fmt.Errorf("parsing address '%s': %w", s, err)
	}
	return uint16(value), nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Output, "o", "", "name of the output .asm file, derived from the input file name if not given")
	flags.IntVar(&opts.Frames, "frames", env.Int("SIDGODISASM_FRAMES", 30000), "number of frames to emulate for memory pattern analysis")
	flags.IntVar(&opts.CallsPerFrame, "callsperframe", 1, "calls to the play routine per frame")
	flags.StringVar(&opts.LoadAddress, "load", "", "load address override for .bin files, for example $1000")
	flags.StringVar(&opts.InitAddress, "init", "", "init address override for .prg and .bin files")
	flags.StringVar(&opts.PlayAddress, "play", "", "play address override for .prg and .bin files")
	flags.StringVar(&opts.Title, "title", "", "title override for the SID header")
	flags.StringVar(&opts.Author, "author", "", "author override for the SID header")
	flags.StringVar(&opts.Copyright, "copyright", "", "copyright override for the SID header")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", env.Bool("SIDGODISASM_QUIET"), "perform operations quietly")
}

func readDisasmOptionFlags(flags *flag.FlagSet, opts *options.Disassembler) {
	flags.IntVar(&opts.PairScanWindow, "pairwindow", opts.PairScanWindow, "maximum distance between pointer low and high bytes in pointer tables")
	flags.IntVar(&opts.PropagationDepth, "propagationdepth", opts.PropagationDepth, "relocation propagation depth limit, 0 for unlimited")
	flags.BoolVar(&opts.ZeroUnusedBytes, "z", false, "zero out data bytes that were never accessed during emulation")
}
