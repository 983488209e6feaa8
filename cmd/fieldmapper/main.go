package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/async"
	"github.com/clinidocs/fieldmapper/internal/common"
	"github.com/clinidocs/fieldmapper/internal/extract"
	"github.com/clinidocs/fieldmapper/internal/processor"
	"github.com/clinidocs/fieldmapper/internal/template"
)

var (
	templatePath string
	verbose      bool
)

func main() {
	root := &cobra.Command{
		Use:   "fieldmapper",
		Short: "Extract and reconcile structured fields from documents",
	}
	root.PersistentFlags().StringVarP(&templatePath, "template", "t", "", "template file (YAML or JSON)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	_ = root.MarkPersistentFlagRequired("template")

	root.AddCommand(processCmd(), batchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <document>",
		Short: "Process one document against the template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			schema, err := template.LoadFile(templatePath)
			if err != nil {
				return err
			}
			coord, err := processor.New(common.LoadConfig(), logger)
			if err != nil {
				return err
			}

			doc, err := documentFor(args[0])
			if err != nil {
				return err
			}
			report := coord.Process(cmd.Context(), doc, schema)
			return printReport(report)
		},
	}
}

func batchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <directory>",
		Short: "Process every supported document under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			schema, err := template.LoadFile(templatePath)
			if err != nil {
				return err
			}
			cfg := common.LoadConfig()
			coord, err := processor.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var mu sync.Mutex
			var failed int
			queue := async.NewBatchQueue(coord, func(job async.Job, report *processor.FinalReport) {
				mu.Lock()
				defer mu.Unlock()
				if !report.IsValid() {
					failed++
				}
				_ = printReport(report)
			}, logger,
				async.WithWorkers(cfg.Workers.Count),
				async.WithQueueSize(cfg.Workers.QueueSize),
				async.WithJobTimeout(cfg.Workers.JobTimeout),
				async.WithContext(ctx),
			)

			if err := enqueueDir(ctx, queue, schema, args[0]); err != nil {
				return err
			}
			queue.Shutdown(context.Background())

			snap := coord.Stats()
			logger.Info("batch.done",
				"processed", snap.Processed,
				"failed", snap.Failed,
				"cache_hits", snap.CacheHits,
				"avg_quality", fmt.Sprintf("%.3f", snap.AverageQuality),
			)
			if failed > 0 {
				return fmt.Errorf("%d document(s) did not validate", failed)
			}
			return nil
		},
	}
}

// enqueueDir walks root and submits every file with a supported extension.
// Hidden files and directories are skipped. A cancelled context ends the walk
// early; documents already queued are left to the queue's own cancellation
// handling.
func enqueueDir(ctx context.Context, queue *async.BatchQueue, schema *template.Schema, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		doc, err := documentFor(path)
		if err != nil {
			return nil // unsupported extension: skip quietly
		}
		if err := queue.Enqueue(ctx, async.Job{Doc: doc, Schema: schema}); err != nil {
			return filepath.SkipAll
		}
		return nil
	})
}

func documentFor(path string) (extract.Document, error) {
	format := constants.MapExtToFormat(filepath.Ext(path))
	if format == "" {
		return extract.Document{}, fmt.Errorf("unsupported extension: %q", filepath.Ext(path))
	}
	return extract.Document{Path: path, Format: format}, nil
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

func printReport(report *processor.FinalReport) error {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
