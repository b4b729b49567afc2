package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nconklindev/pet2bids/internal/bids"
	"github.com/nconklindev/pet2bids/internal/blood"
	"github.com/nconklindev/pet2bids/internal/converter"
	"github.com/nconklindev/pet2bids/internal/hrrt"
	"github.com/nconklindev/pet2bids/internal/metadata"
	"github.com/nconklindev/pet2bids/internal/typecast"
	"github.com/nconklindev/pet2bids/internal/types"

	"github.com/dustin/go-humanize"
)

func fail(stderr io.Writer, err error) int {
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

// runConvertCmd implements `pet2bids convert`.
func runConvertCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("convert", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var output, schemaPath string
	cmd.StringVar(&output, "o", "", "Output name; the sidecar is written as <name>_pet.json")
	cmd.StringVar(&schemaPath, "schema", "", "Field schema JSON (default: configured or embedded)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: pet2bids convert [-o name] [-schema file] <spreadsheet>")
		return 2
	}

	env, err := setup(stderr)
	if err != nil {
		return fail(stderr, err)
	}
	sch, err := env.loadSchema(schemaPath)
	if err != nil {
		return fail(stderr, err)
	}
	input, err := bids.ExpandPath(cmd.Arg(0))
	if err != nil {
		return fail(stderr, err)
	}

	res, err := converter.ConvertSpreadsheet(input, output, sch, env.log, nil)
	if err != nil {
		return fail(stderr, err)
	}
	_, _ = fmt.Fprintf(stdout, "%s (%d fields, %s)\n", res.OutputFile, len(res.FieldsWritten), humanize.Bytes(uint64(res.BytesWritten)))
	return 0
}

// runHRRTCmd implements `pet2bids hrrt`. Scan parameters are given as
// Key=Value arguments; the record is written to -o or printed.
func runHRRTCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("hrrt", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var output, scanStart, parameters, profilePath string
	cmd.StringVar(&output, "o", "", "Write the record to this JSON file instead of stdout")
	cmd.StringVar(&scanStart, "scan-start", "", "Acquisition start (hh:mm:ss) replacing a ScanStart TimeZero")
	cmd.StringVar(&parameters, "parameters", "", "Site defaults file (default: PET2BIDS_HRRT_PARAMETERS)")
	cmd.StringVar(&profilePath, "profile", "", "Scanner profile YAML (default: embedded Siemens HRRT)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	params, err := typecast.ParsePairs(cmd.Args())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	env, err := setup(stderr)
	if err != nil {
		return fail(stderr, err)
	}
	if parameters == "" {
		parameters = env.cfg.HRRTParameters
	}
	if profilePath == "" {
		profilePath = env.cfg.ScannerProfile
	}
	profile, err := hrrt.LoadProfile(profilePath)
	if err != nil {
		return fail(stderr, err)
	}

	m, err := hrrt.NewBuilder(profile, parameters, env.log).Build(params)
	if err != nil {
		return fail(stderr, err)
	}
	if scanStart != "" {
		if _, err := hrrt.SubstituteScanStart(m, scanStart); err != nil {
			return fail(stderr, err)
		}
	}

	if output == "" {
		data, err := m.Encode()
		if err != nil {
			return fail(stderr, err)
		}
		_, _ = stdout.Write(data)
		return 0
	}
	n, err := metadata.WriteFile(output, m)
	if err != nil {
		return fail(stderr, err)
	}
	env.log.WithField("file", output).Infof("wrote %s", humanize.Bytes(uint64(n)))
	return 0
}

// runBloodCmd implements `pet2bids blood`. Extra Key=Value arguments carry
// subject_id, session_id, <kind>_collection_method and sidecar fields.
func runBloodCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("blood", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var in blood.Input
	var opts blood.Options
	cmd.StringVar(&in.WholeBlood, "whole-blood", "", "PMOD whole blood file (REQUIRED)")
	cmd.StringVar(&in.ParentFraction, "parent-fraction", "", "PMOD parent fraction file")
	cmd.StringVar(&in.Plasma, "plasma", "", "PMOD plasma file, or a plasma to whole blood ratio")
	cmd.StringVar(&opts.OutputDir, "o", "", "Output directory (default: folder of the whole blood file)")
	cmd.BoolVar(&opts.JSON, "json", false, "Also write the JSON data dictionary")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if in.WholeBlood == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -whole-blood is required")
		return 2
	}
	extra, err := typecast.ParsePairs(cmd.Args())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	opts.Extra = extra

	for _, p := range []*string{&in.WholeBlood, &in.ParentFraction, &in.Plasma, &opts.OutputDir} {
		if *p, err = bids.ExpandPath(*p); err != nil {
			return fail(stderr, err)
		}
	}

	env, err := setup(stderr)
	if err != nil {
		return fail(stderr, err)
	}
	res, err := blood.Convert(in, opts, env.log)
	if err != nil {
		return fail(stderr, err)
	}
	for _, f := range res.Files {
		_, _ = fmt.Fprintln(stdout, f)
	}
	return 0
}

// runIsPETCmd implements `pet2bids ispet`. It exits 1 when nothing matches.
func runIsPETCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("ispet", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var pathOnly bool
	var schemaPath string
	cmd.BoolVar(&pathOnly, "path-only", false, "Print only the path of a matching file")
	cmd.StringVar(&schemaPath, "schema", "", "Field schema JSON (default: configured or embedded)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: pet2bids ispet [-path-only] <file or folder>")
		return 2
	}

	env, err := setup(stderr)
	if err != nil {
		return fail(stderr, err)
	}
	sch, err := env.loadSchema(schemaPath)
	if err != nil {
		return fail(stderr, err)
	}

	path := cmd.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		return fail(stderr, &types.FieldError{Err: types.ErrFileNotFound, Path: path})
	}

	if !info.IsDir() {
		ok, err := converter.IsPETSpreadsheet(path, sch)
		if err != nil && !errors.Is(err, types.ErrUnsupportedFile) {
			return fail(stderr, err)
		}
		if !ok {
			return 1
		}
		if pathOnly {
			_, _ = fmt.Fprintln(stdout, path)
		} else {
			_, _ = fmt.Fprintf(stdout, "%s spreadsheet\n", path)
		}
		return 0
	}

	folders, err := converter.PETFolders(path, sch)
	if err != nil {
		return fail(stderr, err)
	}
	if len(folders) == 0 {
		return 1
	}
	for _, f := range folders {
		_, _ = fmt.Fprintln(stdout, f)
	}
	return 0
}

// runTemplateCmd implements `pet2bids template`.
func runTemplateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("template", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var schemaPath string
	cmd.StringVar(&schemaPath, "schema", "", "Field schema JSON (default: configured or embedded)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: pet2bids template <out.xlsx>")
		return 2
	}

	env, err := setup(stderr)
	if err != nil {
		return fail(stderr, err)
	}
	sch, err := env.loadSchema(schemaPath)
	if err != nil {
		return fail(stderr, err)
	}
	if err := converter.WriteTemplate(cmd.Arg(0), sch); err != nil {
		return fail(stderr, err)
	}
	_, _ = fmt.Fprintln(stdout, cmd.Arg(0))
	return 0
}
