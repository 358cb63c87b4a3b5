package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/asynkron/diffapply/internal/config"
	"github.com/asynkron/diffapply/internal/core/runtime"
	"github.com/asynkron/diffapply/internal/report"
	"github.com/asynkron/diffapply/internal/tui"
	"github.com/asynkron/diffapply/internal/workspace"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// Run applies a unified diff to a single target file using the provided CLI
// arguments. It returns a POSIX-style exit code: 0 on success, 1 when the
// patch does not apply or I/O fails, 2 on usage errors.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return Execute(ctx, args, os.Stdin, stdout, stderr)
}

// Execute is Run with an explicit stdin.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	if err := godotenv.Load(); err != nil {
		// A missing .env file is fine, but other errors should be surfaced to help with debugging.
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(stderr, "failed to load .env: %v\n", err)
			return exitFailure
		}
	}

	flagSet := flag.NewFlagSet("diffapply", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() {
		fmt.Fprintln(flagSet.Output(), "Usage: diffapply [flags] [target]")
		fmt.Fprintln(flagSet.Output(), "       diffapply -json < payload.json")
		flagSet.PrintDefaults()
	}
	patchPath := flagSet.String("patch", "-", "unified diff to apply; - reads stdin")
	configPath := flagSet.String("config", os.Getenv("DIFFAPPLY_CONFIG"), "YAML configuration file (optional)")
	dryRun := flagSet.Bool("dry-run", false, "check that the patch applies without writing")
	interactive := flagSet.Bool("interactive", false, "preview the change and ask before writing")
	jsonMode := flagSet.Bool("json", false, "read an apply_patch tool payload from stdin and print the observation as JSON")
	markdown := flagSet.Bool("markdown", false, "render reports as markdown")
	seekHeaders := flagSet.Bool("seek-headers", false, "move to each hunk's @@ start line before matching")
	blankContext := flagSet.Bool("blank-context", false, "treat blank lines inside hunks as empty context lines")
	logFile := flagSet.String("log-file", "", "write JSON logs to this file")
	logLevel := flagSet.String("log-level", "", "minimum log level (debug, info, warn, error)")

	if err := flagSet.Parse(args); err != nil {
		return exitUsage
	}

	var target string
	switch {
	case *jsonMode && flagSet.NArg() == 0:
	case !*jsonMode && flagSet.NArg() <= 1:
		// An empty target is inferred from the patch's file headers.
		target = flagSet.Arg(0)
	default:
		flagSet.Usage()
		return exitUsage
	}

	usesStdin := *jsonMode || *patchPath == "-" || *patchPath == ""
	if *interactive && usesStdin {
		fmt.Fprintln(stderr, "-interactive needs the terminal on stdin; pass the diff with -patch <file>")
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitUsage
	}

	set := map[string]bool{}
	flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["seek-headers"] {
		cfg.Engine.SeekHunkHeaders = *seekHeaders
	}
	if set["blank-context"] {
		cfg.Engine.BlankLines = config.BlankLinesEndHunk
		if *blankContext {
			cfg.Engine.BlankLines = config.BlankLinesContext
		}
	}
	if set["markdown"] {
		cfg.Output.Markdown = *markdown
	}
	if set["log-file"] {
		cfg.Logging.File = strings.TrimSpace(*logFile)
	}
	if set["log-level"] {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*logLevel))
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return exitUsage
	}

	logger, err := runtime.NewZapLogger(cfg.Logging.File, runtime.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open log file: %v\n", err)
		return exitFailure
	}
	defer logger.Close()

	renderer := report.NewRenderer(stdout, report.Options{
		Color:    cfg.Output.Color,
		Markdown: cfg.Output.Markdown,
	})

	opts := runtime.ApplyOptions{
		WorkingDir:  cfg.Workspace.Root,
		Patch:       cfg.PatchOptions(),
		LockTimeout: cfg.Workspace.LockTimeout,
		Logger:      logger,
	}
	if *interactive {
		opts.Confirm = tui.NewConfirmFunc(stdin, stdout, renderer)
	}

	command, err := runtime.NewApplyPatchCommand(opts)
	if err != nil {
		fmt.Fprintf(stderr, "failed to create apply command: %v\n", err)
		return exitFailure
	}

	if *jsonMode {
		return runJSON(ctx, command, stdin, stdout, stderr)
	}

	patchText, err := readPatch(*patchPath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read patch: %v\n", err)
		return exitFailure
	}
	if target == "" {
		target, err = workspace.InferTarget(patchText)
		if err != nil {
			fmt.Fprintf(stderr, "no target given: %v\n", err)
			flagSet.Usage()
			return exitUsage
		}
		logger.Debug(ctx, "target inferred from patch headers", runtime.Field("path", target))
	}

	payload, err := command.Apply(ctx, runtime.ApplyRequest{Path: target, Patch: patchText, DryRun: *dryRun})
	if err != nil {
		out, renderErr := renderer.Failure(err)
		if renderErr != nil {
			out = payload.Stderr + "\n"
		}
		fmt.Fprint(stderr, out)
		return exitFailure
	}

	if payload.Declined || payload.Result == nil {
		fmt.Fprintln(stdout, payload.Stdout)
		return exitOK
	}

	out, err := renderer.Success(*payload.Result, *dryRun)
	if err != nil {
		fmt.Fprintln(stdout, payload.Stdout)
		return exitOK
	}
	fmt.Fprint(stdout, out)
	return exitOK
}

func runJSON(ctx context.Context, command *runtime.ApplyPatchCommand, stdin io.Reader, stdout, stderr io.Writer) int {
	raw, err := io.ReadAll(stdin)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read payload: %v\n", err)
		return exitFailure
	}

	payload, err := command.Handle(ctx, string(raw))
	if payload.ExitCode == nil {
		// No observation was produced at all.
		if err == nil {
			err = errors.New("apply_patch returned no result")
		}
		fmt.Fprintf(stderr, "apply_patch: %v\n", err)
		return exitFailure
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "failed to encode observation: %v\n", err)
		return exitFailure
	}
	fmt.Fprintln(stdout, string(data))
	return *payload.ExitCode
}

func readPatch(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
