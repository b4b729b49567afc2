package main

import (
	"fmt"
	"io"
	"os"

	"github.com/nconklindev/pet2bids/internal/config"
	"github.com/nconklindev/pet2bids/internal/logging"
	"github.com/nconklindev/pet2bids/internal/schema"
	"github.com/nconklindev/pet2bids/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startTUI is a variable so tests can run without a terminal.
var startTUI = runTUI

// Run dispatches a subcommand and returns the exit code: 0 on success, 1
// when a conversion fails, 2 on usage errors.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return startTUI(stderr)
	}

	switch args[1] {
	case "convert", "spreadsheet":
		return runConvertCmd(args[2:], stdout, stderr)
	case "hrrt":
		return runHRRTCmd(args[2:], stdout, stderr)
	case "blood":
		return runBloodCmd(args[2:], stdout, stderr)
	case "ispet":
		return runIsPETCmd(args[2:], stdout, stderr)
	case "template":
		return runTemplateCmd(args[2:], stdout, stderr)
	case "version", "--version", "-v":
		_, _ = fmt.Fprintf(stdout, "pet2bids %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `Usage: pet2bids [command] [flags]

Without a command pet2bids opens the interactive spreadsheet converter.

Commands:
  convert   <spreadsheet>          write <name>_pet.json from a CSV, TSV or XLSX sheet
  hrrt      [Key=Value ...]        write Siemens HRRT PET metadata
  blood     -whole-blood <file>    convert PMOD .bld blood files to BIDS tables
  ispet     <file or folder>       report PET metadata spreadsheets
  template  <out.xlsx>             write an empty metadata spreadsheet
  version                          print version information

Configuration is read from ~/.pet2bidsconfig (PET2BIDS_CONFIG) and the
PET2BIDS_SCHEMA, PET2BIDS_HRRT_PARAMETERS, PET2BIDS_SCANNER_PROFILE and
PET2BIDS_LOG_LEVEL environment variables.
`)
}

// environment holds what every command needs: configuration and a logger
// writing to stderr.
type environment struct {
	cfg *config.Config
	log *logrus.Logger
}

func setup(stderr io.Writer) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, log: log}, nil
}

// loadSchema prefers the flag value, then the configured path, then the
// embedded resource.
func (e *environment) loadSchema(flagValue string) (*schema.Schema, error) {
	path := e.cfg.Schema
	if flagValue != "" {
		path = flagValue
	}
	return schema.LoadOrDefault(path)
}

func runTUI(stderr io.Writer) int {
	env, err := setup(stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	sch, err := env.loadSchema("")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	p := tea.NewProgram(ui.InitialModel(sch), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
