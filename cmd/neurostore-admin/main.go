// Command neurostore-admin performs administrative operations against the
// configured record store and blob store: resetting storage, clearing one
// collection, ingesting functional data uploads, and listing resources.
//
// Storage selection follows the NEUROSTORE_STORAGE_DRIVER and
// NEUROSTORE_BLOB_DRIVER environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"neurostore/internal/blob"
	"neurostore/internal/core"
	"neurostore/pkg/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(stderr io.Writer) {
	fmt.Fprintln(stderr, "usage: neurostore-admin <reset|clear|ingest|list> [flags]")
	fmt.Fprintln(stderr, "  reset                         remove every stored resource")
	fmt.Fprintln(stderr, "  clear  -type <resource type>  remove one resource collection")
	fmt.Fprintln(stderr, "  ingest -file <path>           ingest a functional data upload")
	fmt.Fprintln(stderr, "  list   -type <resource type>  list resource identifiers")
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	ctx := context.Background()

	svc, cleanup, err := openService(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "neurostore-admin: %v\n", err)
		return 1
	}
	defer cleanup()

	switch args[0] {
	case "reset":
		err = runReset(ctx, svc, stdout)
	case "clear":
		err = runClear(ctx, svc, args[1:], stdout)
	case "ingest":
		err = runIngest(ctx, svc, args[1:], stdout)
	case "list":
		err = runList(ctx, svc, args[1:], stdout)
	default:
		usage(stderr)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "neurostore-admin: %v\n", err)
		return 1
	}
	return 0
}

func openService(ctx context.Context) (*core.Service, func(), error) {
	store, err := core.OpenStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open record store: %w", err)
	}
	blobs, err := blob.Open(ctx)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	dataDir := os.Getenv("NEUROSTORE_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	svc := core.NewService(store, blobs, dataDir)
	return svc, func() { _ = store.Close() }, nil
}

func runReset(ctx context.Context, svc *core.Service, stdout io.Writer) error {
	if err := svc.ResetStore(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "store reset")
	return nil
}

func resolveType(name string) (domain.ResourceType, error) {
	typ := domain.ResourceType(name)
	if !typ.Valid() {
		return "", fmt.Errorf("unknown resource type %q (one of %v)", name, domain.ResourceTypes())
	}
	return typ, nil
}

func runClear(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	typeName := fs.String("type", "", "resource type to clear")
	if err := fs.Parse(args); err != nil {
		return err
	}
	typ, err := resolveType(*typeName)
	if err != nil {
		return err
	}
	if err := svc.ClearCollection(ctx, typ); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "cleared %s\n", typ.Collection())
	return nil
}

func runIngest(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	file := fs.String("file", "", "upload file to ingest")
	readOnly := fs.Bool("read-only", false, "mark the resource read-only")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("ingest needs -file")
	}
	data, err := svc.CreateFunctionalData(ctx, *file, nil, *readOnly)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created functional data %s (%d files) in %s\n", data.ID, len(data.Files), data.Directory)
	for _, f := range data.Files {
		fmt.Fprintf(stdout, "  %s -> %s (%d bytes)\n", f.Name, f.StoredPath, f.Size)
	}
	return nil
}

func runList(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	typeName := fs.String("type", "", "resource type to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	typ, err := resolveType(*typeName)
	if err != nil {
		return err
	}
	handles, err := svc.ListObjects(ctx, typ, nil)
	if err != nil {
		return err
	}
	for _, h := range handles {
		marker := ""
		if h.ReadOnly {
			marker = " (read-only)"
		}
		fmt.Fprintf(stdout, "%s%s\n", h.ID, marker)
	}
	return nil
}
