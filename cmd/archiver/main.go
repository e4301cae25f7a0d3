// Command archiver exports aged processed-event ledger rows to a
// zstd-compressed NDJSON file and removes them from the database. Intended
// to run from cron; each run drains everything older than the retention
// window.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"neuraslide/internal/config"
	"neuraslide/internal/db"
	"neuraslide/internal/ledger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("archiver failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	retention := flag.Duration("retention", 90*24*time.Hour, "keep ledger rows newer than this")
	outPath := flag.String("out", "", "output file path (default: ledger-<date>.ndjson.zst)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	cutoff := time.Now().UTC().Add(-*retention)
	path := *outPath
	if path == "" {
		path = fmt.Sprintf("ledger-%s.ndjson.zst", time.Now().UTC().Format("20060102"))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	archiver := ledger.NewArchiver(db.NewProcessedEventRepo(pool), logger)
	n, err := archiver.Run(ctx, cutoff, f)
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}

	logger.Info("archive complete",
		slog.Int("rows", n),
		slog.String("path", path),
		slog.Time("cutoff", cutoff),
	)
	return nil
}
