// Package main implements a C64 SID music disassembler that produces
// relocatable assembly output.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"

	"github.com/retroenv/sidgodisasm/internal/app"
	"github.com/retroenv/sidgodisasm/internal/cli"
	"github.com/retroenv/sidgodisasm/internal/config"
	"github.com/retroenv/sidgodisasm/internal/options"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	opts, disasmOpts, err := cli.ParseFlags()
	if err != nil {
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			printBanner(opts)
			usageErr.ShowUsage()
		} else {
			logger := config.CreateLogger(opts.Debug, opts.Quiet)
			logger.Error(err.Error())
		}
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Debug, opts.Quiet)
	printBanner(opts)

	if err := app.Run(logger, opts, disasmOpts, buildinfo.Version(version, commit, date)); err != nil {
		logger.Error("Disassembling failed", log.Err(err))
		os.Exit(1)
	}
}

func printBanner(opts options.Program) {
	if opts.Quiet {
		return
	}
	fmt.Println("[------------------------------------------]")
	fmt.Println("[ sidgodisasm - C64 SID music disassembler ]")
	fmt.Printf("[------------------------------------------]\n\n")
	fmt.Printf("version: %s\n\n", buildinfo.Version(version, commit, date))
}
