package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderpack/internal/cache"
	"github.com/Faultbox/shaderpack/internal/logger"
	"github.com/Faultbox/shaderpack/internal/settings"
	"github.com/Faultbox/shaderpack/internal/watch"
	"github.com/Faultbox/shaderpack/pkg/archive"
	"github.com/Faultbox/shaderpack/pkg/binding"
	"github.com/Faultbox/shaderpack/pkg/glsl"
)

func cmdBuild(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: packc build <pack>")
		os.Exit(1)
	}
	e := setup()
	ctx, cancel := signalContext()
	defer cancel()

	report, err := build(ctx, e, args[0])
	if err != nil {
		fatal(err)
	}
	printReport(os.Stdout, report)
	logger.Sync()
	if report.Failed > 0 {
		os.Exit(2)
	}
}

func build(ctx context.Context, e *env, packPath string) (*cache.Report, error) {
	pack, err := e.mgr.Discover(packPath)
	if err != nil {
		return nil, err
	}
	return e.mgr.Refresh(ctx, pack)
}

func printReport(w io.Writer, r *cache.Report) {
	fmt.Fprintf(w, "Pack:       %s\n", r.Pack)
	fmt.Fprintf(w, "Translated: %d\n", r.Translated)
	fmt.Fprintf(w, "Compiled:   %d\n", r.Compiled)
	fmt.Fprintf(w, "Up to date: %d\n", r.Skipped)
	fmt.Fprintf(w, "Failed:     %d\n", r.Failed)
	printFailures(w, r.Failures)
}

func printFailures(w io.Writer, failures []cache.Failure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, f := range failures {
		fmt.Fprintf(w, "  %s\n", f.Path)
		for _, line := range strings.Split(strings.TrimSpace(f.Message), "\n") {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	verbose := fs.Bool("v", false, "List translation notes per unit")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: packc status [-v] <pack>")
		os.Exit(1)
	}
	e := setup()
	pack, err := e.mgr.Discover(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	s := e.mgr.Status(pack)

	fmt.Printf("Pack:     %s\n", s.Pack)
	fmt.Printf("Units:    %d\n", len(pack.Units))
	fmt.Printf("Compiled: %d\n", s.Compiled)
	fmt.Printf("Failed:   %d\n", s.Failed)
	fmt.Printf("Pending:  %d\n", s.Pending)
	fmt.Printf("Includes: %d\n", s.Includes)
	fmt.Printf("Notes:    %d\n", s.Notes)
	printFailures(os.Stdout, s.Failures)

	if *verbose {
		for _, u := range pack.Units {
			notes := e.mgr.Notes(pack, u.Path)
			if len(notes) == 0 {
				continue
			}
			fmt.Printf("\n%s (%s)\n", u.Path, u.Stage)
			for _, n := range notes {
				fmt.Printf("  %s\n", n)
			}
		}
	}
}

func cmdTranslate(args []string) {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	showBindings := fs.Bool("b", false, "Print the binding table after the source")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: packc translate [-b] <pack> <unit>")
		os.Exit(1)
	}
	e := setup()
	pack, err := e.mgr.Discover(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	tr, err := e.mgr.Translate(pack, fs.Arg(1))
	if err != nil {
		fatal(err)
	}

	fmt.Print(tr.Source)
	for _, n := range tr.Notes {
		fmt.Fprintf(os.Stderr, "note: %s\n", n)
	}
	if *showBindings {
		fmt.Println()
		printBindings(os.Stdout, tr.Bindings)
	}
}

func printBindings(w io.Writer, t *binding.Table) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SET\tBINDING\tKIND\tTYPE\tNAME")
	for _, b := range t.Bindings {
		name := b.Name
		if b.Explicit {
			name += " (explicit)"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", b.Set, b.Index, b.Kind, b.Type, name)
	}
	tw.Flush()
	for _, u := range t.Unbound {
		fmt.Fprintf(w, "unbound: %s\n", u)
	}
}

func cmdHandles(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: packc handles <pack>")
		os.Exit(1)
	}
	e := setup()
	pack, err := e.mgr.Discover(args[0])
	if err != nil {
		fatal(err)
	}
	handles := e.mgr.Handles(pack)
	if len(handles) == 0 {
		fmt.Println("No compiled units. Run: packc build", args[0])
		return
	}
	for _, h := range handles {
		fmt.Printf("%s  %s  %d bytes\n", h.Path, h.Stage, len(h.Bytecode))
		if len(h.Bindings.Bindings) > 0 || len(h.Bindings.Unbound) > 0 {
			printBindings(os.Stdout, h.Bindings)
		}
		fmt.Println()
	}
}

func cmdOptions(args []string) {
	fs := flag.NewFlagSet("options", flag.ExitOnError)
	reset := fs.Bool("reset", false, "Restore every option to its default")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: packc options [-reset] <pack> [NAME=value ...]")
		os.Exit(1)
	}
	e := setup()
	packPath := fs.Arg(0)
	pack, err := e.mgr.Discover(packPath)
	if err != nil {
		fatal(err)
	}

	changes, err := parseAssignments(fs.Args()[1:])
	if err != nil {
		fatal(err)
	}
	if len(changes) == 0 && !*reset {
		printOptions(os.Stdout, pack.Options, pack.Settings)
		return
	}

	next := glsl.Settings{}
	if !*reset {
		for k, v := range pack.Settings {
			next[k] = v
		}
	}
	for k, v := range changes {
		next[k] = v
	}
	if err := settings.Validate(pack.Options, changes); err != nil {
		fatal(err)
	}
	path := settings.PathFor(packPath)
	if err := settings.Save(path, pack.Options, next); err != nil {
		fatal(err)
	}
	e.log.Info("Saved pack settings", zap.String("pack", pack.Name), zap.String("file", path))
	printOptions(os.Stdout, pack.Options, next)
}

// parseAssignments reads NAME=value arguments. A bare NAME means NAME=true
// and !NAME means NAME=false.
func parseAssignments(args []string) (glsl.Settings, error) {
	out := glsl.Settings{}
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		switch {
		case ok:
		case strings.HasPrefix(a, "!"):
			name, value = a[1:], "false"
		default:
			value = "true"
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("bad option assignment %q", a)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}

func printOptions(w io.Writer, opts []glsl.Option, s glsl.Settings) {
	if len(opts) == 0 {
		fmt.Fprintln(w, "No options declared.")
		return
	}
	eff := settings.Effective(opts, s)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tVALUE\tDEFAULT\tCHOICES")
	for _, o := range opts {
		mark := ""
		if eff[o.Name] != o.Default {
			mark = " *"
		}
		choices := strings.Join(o.Values, " ")
		if o.Kind == glsl.BoolOption {
			choices = "true false"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s%s\t%s\t%s\n", o.Name, o.Kind, eff[o.Name], mark, o.Default, choices)
	}
	tw.Flush()
}

func cmdWatch(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: packc watch <pack>")
		os.Exit(1)
	}
	packPath := args[0]
	e := setup()
	ctx, cancel := signalContext()
	defer cancel()

	rebuild := func(ctx context.Context) error {
		report, err := build(ctx, e, packPath)
		if err != nil {
			return err
		}
		printReport(os.Stdout, report)
		fmt.Println()
		return nil
	}
	if err := rebuild(ctx); err != nil {
		var ee *cache.ExtractionError
		if !errors.As(err, &ee) {
			fatal(err)
		}
		// a half-written archive is picked up again on the next change
		e.log.Warn("Initial build failed", zap.Error(err))
	}

	w, err := watch.New(packPath, watch.Options{
		Debounce: e.cfg.Watch.Debounce,
		Exclude:  []string{e.cfg.Cache.Dir},
		Also:     []string{settings.PathFor(packPath)},
		Logger:   e.log.Named("watch"),
	})
	if err != nil {
		fatal(err)
	}
	defer w.Close()

	e.log.Info("Watching", zap.String("pack", archive.Name(packPath)), zap.String("path", w.Path()))
	if err := w.Run(ctx, rebuild); err != nil {
		fatal(err)
	}
	logger.Sync()
}

func cmdClean(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: packc clean <pack>")
		os.Exit(1)
	}
	e := setup()
	name := archive.Name(filepath.Clean(args[0]))
	if err := e.mgr.Clean(name); err != nil {
		fatal(err)
	}
	fmt.Printf("Removed cache of %s\n", name)
}
