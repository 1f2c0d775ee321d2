// Command inspector-debug runs the inspection engine against a single
// entity file for local debugging, printing the unified diff of what would
// change without writing it back or touching git, grounded on the
// original's debug_processing_single_file.py.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	flag "github.com/spf13/pflag"

	"github.com/archi-tools/inspector/internal/cache"
	"github.com/archi-tools/inspector/internal/logfields"
	"github.com/archi-tools/inspector/pkg/inspector"
	"github.com/archi-tools/inspector/pkg/resolver"
	"github.com/archi-tools/inspector/pkg/resolvers/file"
	"github.com/archi-tools/inspector/pkg/resolvers/https"
	"github.com/archi-tools/inspector/pkg/xmlmodel"
)

func main() {
	logLevel := flag.StringP("log", "l", "info", "log level: debug, info, warn, error")
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: inspector-debug [--log LEVEL] <entity-file>")
		os.Exit(2)
	}

	if err := run(args[0], *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(inFile, logLevel string) error {
	zapLogger, err := logfields.NewZapLogger(logLevel, "console")
	if err != nil {
		return err
	}
	defer zapLogger.Sync() //nolint:errcheck
	logger := logfields.ToLogr(zapLogger)

	before, err := os.ReadFile(inFile)
	if err != nil {
		return err
	}

	f, err := os.Open(inFile)
	if err != nil {
		return err
	}
	root, err := xmlmodel.Parse(f)
	closeErr := f.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}

	reg := resolver.NewRegistry()
	store := cache.NewMemoryCache()
	reg.Register(file.New())
	reg.Register(https.New(map[string]string{}, store, https.WithLogger(logger)))

	engine := inspector.New(reg, logger)
	changed, err := engine.Inspect(context.Background(), root)
	if err != nil {
		return err
	}

	fmt.Println("Changes detected:", changed)
	if !changed {
		return nil
	}

	var after bytes.Buffer
	if err := xmlmodel.Write(root, &after); err != nil {
		return err
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(after.String()),
		FromFile: inFile,
		ToFile:   "processed.xml",
		Context:  3,
	})
	if err != nil {
		return err
	}
	fmt.Print(diff)
	return nil
}
