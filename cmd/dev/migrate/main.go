package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"decorbook/pkg/config"
	"decorbook/pkg/db"
)

func main() {
	path := flag.String("path", "", "migrations source (defaults to MIGRATIONS_PATH or file://migrations)")
	flag.Parse()

	cfg := config.Load()
	if *path == "" {
		*path = cfg.MigrationsPath
	}
	if *path == "" {
		*path = "file://migrations"
	}

	target := db.MigrationURL(cfg)
	v, err := db.Migrate(*path, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate failed target=%s: %v\n", db.Redacted(target), err)
		os.Exit(1)
	}

	// The runtime pool may point at a pooler rather than the migration target.
	pool, err := db.Open(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime db open failed target=%s: %v\n", db.Redacted(db.RuntimeURL(cfg)), err)
		os.Exit(1)
	}
	pool.Close()

	fmt.Printf("migrations applied version=%d target=%s\n", v, db.Redacted(target))
}
