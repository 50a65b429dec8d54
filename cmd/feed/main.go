// Command feed is the ingest pipeline's process entrypoint: a thin CLI
// over internal/app, grounded on the teacher's minimalist cmd/main.go
// (init app, start background work, keep the process alive until
// signalled).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hathitrust/feed/internal/app"
	"github.com/hathitrust/feed/internal/namespace"
	_ "github.com/hathitrust/feed/internal/namespaces"
	"github.com/hathitrust/feed/internal/pkgtype"
	_ "github.com/hathitrust/feed/internal/packagetypes"
	"github.com/hathitrust/feed/internal/stage"
	_ "github.com/hathitrust/feed/internal/stages"
)

// version is overridable at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var showVersion bool
	var showVersionCaps bool
	flag.BoolVar(&showVersion, "version", false, "print the feed version and exit")
	flag.BoolVar(&showVersionCaps, "Version", false, "print the feed version, and every loaded namespace/packagetype/stage, then exit")
	flag.Parse()

	if showVersionCaps {
		printVersionBanner()
		return
	}
	if showVersion {
		fmt.Println("feed", version)
		return
	}

	args := flag.Args()
	if len(args) == 0 || args[0] != "run" {
		fmt.Fprintln(os.Stderr, "usage: feed run")
		os.Exit(2)
	}

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to initialize feed: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := a.Start(ctx)
	fmt.Println("feed worker pool running")

	if err := <-done; err != nil && err != context.Canceled {
		a.Log.Warn("worker pool exited", "error", err)
	}
}

// printVersionBanner implements --Version: the feed version plus every
// namespace, package type, and stage identifier this binary was built
// with, so an operator can confirm what's loaded without starting a
// worker pool or touching Postgres.
func printVersionBanner() {
	fmt.Println("feed", version)

	fmt.Println("namespaces:")
	for _, id := range namespace.Registry.Enumerate() {
		ns, err := namespace.Registry.Lookup(id)
		if err != nil {
			continue
		}
		printIdentifierLine(id, ns.Description)
	}

	fmt.Println("packagetypes:")
	for _, id := range pkgtype.Registry.Enumerate() {
		pt, err := pkgtype.Registry.Lookup(id)
		if err != nil {
			continue
		}
		printIdentifierLine(id, pt.Description)
	}

	fmt.Println("stages:")
	for _, id := range stage.Registry.Enumerate() {
		fmt.Printf("  %s\n", id)
	}
}

func printIdentifierLine(id, description string) {
	if description == "" {
		fmt.Printf("  %s\n", id)
		return
	}
	fmt.Printf("  %s: %s\n", id, description)
}
