// Command downtime-import loads report files from disk without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"downtime-report-backend/config"
	"downtime-report-backend/internal/db"
	"downtime-report-backend/internal/ingest"
	"downtime-report-backend/internal/store"
)

func main() {
	configPath := flag.StringP("config", "c", "./config/config.yaml", "path to the configuration file")
	noDemo := flag.Bool("no-demo", false, "never answer with synthetic data for unusable reports")
	printJSON := flag.Bool("json", false, "print each import response as JSON")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] report.xml [report.xml ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", *configPath, err)
	}
	cfg.ConfigureLogging()
	if *noDemo {
		off := false
		cfg.Ingest.DemoFallback = &off
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	svc := ingest.NewService(cfg, store.NewGormStore(gormDB), nil)
	if err := importAll(context.Background(), svc, flag.Args(), *printJSON); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func importAll(ctx context.Context, svc *ingest.Service, paths []string, printJSON bool) error {
	var result *multierror.Error
	for _, path := range paths {
		resp, err := importOne(ctx, svc, path)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if resp.PersistError != "" {
			result = multierror.Append(result, fmt.Errorf("%s: %s", path, resp.PersistError))
		}

		if printJSON {
			out, _ := json.MarshalIndent(resp, "", "  ")
			fmt.Println(string(out))
			continue
		}
		log.WithFields(log.Fields{
			"file":      path,
			"incidents": resp.Summary.TotalIncidents,
			"downtime":  resp.Summary.TotalDowntime,
			"synthetic": resp.Summary.IsSynthetic,
			"persisted": resp.Persisted,
		}).Info("report imported")
	}
	return result.ErrorOrNil()
}

// importOne copies path into the upload directory first, so deleting the report later
// never touches the caller's file.
func importOne(ctx context.Context, svc *ingest.Service, path string) (*ingest.Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ingest.ErrUnreadableSource, err)
	}
	defer f.Close()

	saved, err := svc.SaveUpload(filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	return svc.IngestFile(ctx, saved, ingest.Meta{FileName: filepath.Base(path)})
}
