// Command contentcheck audits a course catalogue: it lints every document,
// checks route uniqueness and navigation links, and optionally writes an
// XLSX workbook of routes, questions and findings. It exits non-zero when
// anything is wrong.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/p-n-ai/study-centre/courses"
	"github.com/p-n-ai/study-centre/internal/catalog"
	"github.com/p-n-ai/study-centre/internal/platform/lazy"
	"github.com/p-n-ai/study-centre/internal/report"
	"github.com/p-n-ai/study-centre/internal/routing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("contentcheck", flag.ContinueOnError)
	fset.SetOutput(stderr)
	dir := fset.String("dir", "", "catalogue directory (default: embedded catalogue)")
	xlsx := fset.String("xlsx", "", "write the audit workbook to this path")
	quiet := fset.Bool("q", false, "only print findings")
	if err := fset.Parse(args); err != nil {
		return 2
	}

	var (
		cat *catalog.Catalog
		err error
	)
	if *dir != "" {
		cat, err = catalog.OpenDir(*dir)
	} else {
		cat, err = catalog.Open(courses.FS)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	reg, err := routing.Build(cat, lintOptions())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	audit := report.Build(ctx, cat, reg)
	if !*quiet {
		fmt.Fprintf(stdout, "%d courses, %d routes, %d questions\n", len(cat.Courses()), len(audit.Routes), len(audit.Questions))
	}
	for _, f := range audit.Findings {
		fmt.Fprintln(stdout, f.String())
	}

	if *xlsx != "" {
		if err := writeWorkbook(*xlsx, audit); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if !*quiet {
			fmt.Fprintf(stdout, "wrote %s\n", *xlsx)
		}
	}

	if !audit.OK() {
		fmt.Fprintf(stderr, "%d problems found\n", len(audit.Findings))
		return 1
	}
	return 0
}

// lintOptions loads each route once with no backoff so failures surface
// immediately.
func lintOptions() routing.Options {
	return routing.Options{Policy: lazy.Policy{Attempts: 1}}
}

func writeWorkbook(path string, audit *report.Audit) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := audit.WriteXLSX(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
