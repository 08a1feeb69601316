// alarmtrace reads equipment alarm logs, pairs each raised alarm with its
// termination, and prints, exports or summarizes the resulting occurrence
// table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/setevik/alarmtrace/internal/config"
	"github.com/setevik/alarmtrace/internal/correlate"
	"github.com/setevik/alarmtrace/internal/event"
	"github.com/setevik/alarmtrace/internal/export"
	"github.com/setevik/alarmtrace/internal/format"
	"github.com/setevik/alarmtrace/internal/parser"
	"github.com/setevik/alarmtrace/internal/reporter"
	"github.com/setevik/alarmtrace/internal/source"
	"github.com/setevik/alarmtrace/internal/store"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "analyze":
			runAnalyze(os.Args[2:])
			return
		case "export":
			runExport(os.Args[2:])
			return
		case "summary":
			runSummary(os.Args[2:])
			return
		case "show":
			runShow(os.Args[2:])
			return
		case "version":
			fmt.Println("alarmtrace", version)
			return
		}
	}

	// Default: analyze.
	runAnalyze(os.Args[1:])
}

// commonFlags are shared by every subcommand that reads sources.
type commonFlags struct {
	configPath *string
	workers    *int
	logLevel   *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", "", "path to config file (.toml, .yaml)"),
		workers:    fs.Int("workers", 0, "sources parsed concurrently (default from config)"),
		logLevel:   fs.String("log-level", "", "override log level (debug, info, warn, error)"),
	}
}

// load reads the config and applies flag overrides. Errors exit the process.
func (c commonFlags) load() *config.Config {
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if *c.workers > 0 {
		cfg.Parse.Workers = *c.workers
	}
	if *c.logLevel != "" {
		cfg.Log.Level = *c.logLevel
	}
	setupLogging(cfg.Log.Level, cfg.Log.Format)
	return cfg
}

// result is one completed pipeline pass.
type result struct {
	sources []string
	rows    []event.Occurrence
}

// pipeline loads sources, parses them and correlates the events.
func pipeline(ctx context.Context, cfg *config.Config, paths []string) (*result, error) {
	if len(paths) == 0 && len(cfg.Commands) == 0 {
		return nil, errors.New("no sources given: pass files, directories, \"-\" for stdin, or configure [[command]]")
	}

	sources := map[string]string{}
	if len(paths) > 0 {
		loaded, err := source.NewLoader(cfg.Parse.Extensions).Load(ctx, paths)
		if err != nil {
			slog.Warn("some sources could not be loaded", "error", err)
		}
		sources = loaded
	}

	cmds := make([]source.Command, len(cfg.Commands))
	for i, c := range cfg.Commands {
		cmds[i] = source.Command{Name: c.Name, Args: c.Args, Timeout: c.Timeout.Duration}
	}
	source.RunCommands(ctx, cmds, sources)

	if len(sources) == 0 {
		return nil, errors.New("no readable sources")
	}

	p := parser.New(parser.Options{
		RestartCode: cfg.Correlate.RestartCode,
		Workers:     cfg.Parse.Workers,
	})
	events, err := p.ParseSources(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("parsing sources: %w", err)
	}

	engine := correlate.New(correlate.Options{KeyPrefixLen: cfg.Correlate.KeyPrefixLen})
	rows := engine.Correlate(events)

	slog.Info("correlation complete",
		"sources", len(sources),
		"events", len(events),
		"occurrences", len(rows),
	)
	return &result{sources: source.IDs(sources), rows: rows}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// --- analyze subcommand ---

func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	common := addCommonFlags(fs)
	status := fs.String("status", "", "only show rows with this status (e.g. open, paired, unmatched)")
	fs.Parse(args)

	cfg := common.load()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := pipeline(ctx, cfg, fs.Args())
	if err != nil {
		slog.Error("analyze failed", "error", err)
		os.Exit(1)
	}

	rows := res.rows
	if *status != "" {
		rows = filterStatus(rows, *status)
	}
	if len(rows) == 0 {
		fmt.Println("No alarm events found.")
		return
	}
	printOccurrences(os.Stdout, rows)
}

// statusAliases lets the status filter use short names.
var statusAliases = map[string]event.Status{
	"paired":    event.StatusPaired,
	"unmatched": event.StatusUnmatchedTerminate,
	"open":      event.StatusOpen,
	"restart":   event.StatusUncontrolledRestart,
	"error":     event.StatusSoftwareError,
	"info":      event.StatusInfo,
}

func filterStatus(rows []event.Occurrence, name string) []event.Occurrence {
	want, ok := statusAliases[strings.ToLower(name)]
	if !ok {
		want = event.Status(name)
	}
	var out []event.Occurrence
	for _, o := range rows {
		if o.Status == want {
			out = append(out, o)
		}
	}
	return out
}

func printOccurrences(w io.Writer, rows []event.Occurrence) {
	for _, o := range rows {
		raise := format.Time(o.RaiseTime)
		if raise == "" {
			raise = "-"
		}
		fmt.Fprintf(w, "%-19s  %-30s %-8s %-8s %s\n", raise, o.Status, o.Severity, o.AlarmName, o.Device)

		if o.TerminateTime != nil && o.Status == event.StatusPaired {
			line := fmt.Sprintf("terminated %s", format.Time(o.TerminateTime))
			if o.Duration != nil {
				line += fmt.Sprintf(" after %s", format.Duration(*o.Duration))
			}
			if o.ClockSkew {
				line += " (clock skew)"
			}
			fmt.Fprintf(w, "                     %s\n", line)
		}
		fmt.Fprintf(w, "                     %s\n\n", o.Message)
	}
	fmt.Fprintf(w, "Total: %s\n", format.Count(len(rows), "occurrence"))
}

// --- export subcommand ---

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	common := addCommonFlags(fs)
	formatName := fs.String("format", "", "csv, json, msgpack or sqlite (default from config)")
	out := fs.String("o", "", "output file; \"-\" or empty writes to stdout")
	fs.Parse(args)

	cfg := common.load()

	if *formatName == "" {
		*formatName = cfg.Export.Format
	}
	if *out == "" {
		*out = cfg.Export.Path
	}

	f, err := export.ParseFormat(*formatName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := pipeline(ctx, cfg, fs.Args())
	if err != nil {
		slog.Error("export failed", "error", err)
		os.Exit(1)
	}

	run := store.NewRun(res.sources)
	if *out == "" || *out == "-" {
		err = export.Write(os.Stdout, f, run, res.rows)
	} else {
		err = export.ToFile(*out, f, run, res.rows)
	}
	if err != nil {
		slog.Error("export failed", "error", err)
		os.Exit(1)
	}
	slog.Info("export written", "format", f, "path", *out, "run_id", run.ID, "rows", len(res.rows))
}

// --- summary subcommand ---

func runSummary(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	common := addCommonFlags(fs)
	send := fs.Bool("send", false, "send summary via ntfy (otherwise print to stdout)")
	fs.Parse(args)

	cfg := common.load()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := pipeline(ctx, cfg, fs.Args())
	if err != nil {
		slog.Error("summary failed", "error", err)
		os.Exit(1)
	}

	summary := reporter.BuildSummary(res.rows, len(res.sources))

	if !*send {
		fmt.Print(reporter.FormatSummary(summary))
		return
	}

	rep := reporter.NewNtfy(cfg.Ntfy)
	if !rep.Enabled() {
		fmt.Fprintln(os.Stderr, "error: ntfy.url not configured")
		os.Exit(1)
	}
	if err := rep.SendSummary(ctx, summary); err != nil {
		fmt.Fprintf(os.Stderr, "error sending summary: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Summary sent successfully.")
}

// --- show subcommand ---

func runShow(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	formatName := fs.String("format", "", "json, msgpack or sqlite (default from file extension)")
	runID := fs.String("run", "", "run id to show from an sqlite export (default newest)")
	list := fs.Bool("list", false, "list the runs stored in an sqlite export")
	summary := fs.Bool("summary", false, "print the summary instead of the table")
	status := fs.String("status", "", "only show rows with this status")
	fs.Parse(args)

	setupLogging("error", "text") // quiet for CLI output

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: alarmtrace show [-format f] [-run id] [-list] [-summary] FILE")
		os.Exit(1)
	}
	path := fs.Arg(0)

	var f export.Format
	var err error
	if *formatName != "" {
		f, err = export.ParseFormat(*formatName)
	} else {
		f, err = export.FormatForPath(path)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *list {
		if f != export.FormatSQLite {
			fmt.Fprintln(os.Stderr, "error: -list needs an sqlite export")
			os.Exit(1)
		}
		runs, err := export.ListRuns(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printRuns(os.Stdout, runs)
		return
	}

	run, rows, err := export.ReadFile(path, f, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *summary {
		fmt.Printf("Run:              %s\n", run.ID)
		fmt.Print(reporter.FormatSummary(reporter.BuildSummary(rows, len(run.Sources))))
		return
	}

	if *status != "" {
		rows = filterStatus(rows, *status)
	}
	if len(rows) == 0 {
		fmt.Println("No alarm events found.")
		return
	}
	printOccurrences(os.Stdout, rows)
}

func printRuns(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %s\n", r.ID, r.CreatedAt.Local().Format(format.TimeLayout), format.Count(len(r.Sources), "source"))
	}
	fmt.Fprintf(w, "Total: %s\n", format.Count(len(runs), "run"))
}

// --- utilities ---

func setupLogging(level, logFormat string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
