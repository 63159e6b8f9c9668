package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpAdapter "github.com/cwygoda/fetchdata/internal/adapter/http"
	"github.com/cwygoda/fetchdata/internal/adapter/httpfetch"
	"github.com/cwygoda/fetchdata/internal/adapter/sqlite"
	"github.com/cwygoda/fetchdata/internal/adapter/targz"
	"github.com/cwygoda/fetchdata/internal/config"
	"github.com/cwygoda/fetchdata/internal/domain"
	"github.com/cwygoda/fetchdata/internal/metrics"
	"github.com/cwygoda/fetchdata/internal/progress"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitFailed = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	reporter := progress.NewReporter(os.Stderr)
	log.SetOutput(reporter.LogWriter())

	cfg, err := config.Load(args)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		log.Printf("error: %v", err)
		return exitFatal
	}

	manifest, err := config.LoadManifest(cfg.ManifestPath)
	if err != nil {
		log.Printf("error: %v", err)
		return exitFatal
	}
	req, err := manifest.Request(cfg.Destination, cfg.Force)
	if err != nil {
		log.Printf("error: %v", err)
		return exitFatal
	}

	log.Printf("manifest: %s (%d entries)", cfg.ManifestPath, len(req.Entries))
	log.Printf("destination: %s", req.DestinationDir)

	reg := prometheus.NewRegistry()
	recorders := []domain.RunRecorder{metrics.New(reg)}

	// Left nil when disabled so the status server reports 503.
	var runs domain.RunStore
	if cfg.LedgerEnabled() {
		repo, err := sqlite.New(cfg.LedgerPath)
		if err != nil {
			log.Printf("warning: run ledger unavailable: %v", err)
		} else {
			defer repo.Close()
			log.Printf("ledger: %s", cfg.LedgerPath)
			recorders = append(recorders, repo)
			runs = repo
		}
	}

	client := httpfetch.NewClient(httpfetch.Config{Timeout: cfg.Timeout})
	svc := domain.NewBatchService(client, client, targz.New(), reporter, recorders...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpAdapter.Server
	if cfg.Listen != "" {
		srv = httpAdapter.NewServer(reporter, runs, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), cfg.Listen)
		go func() {
			log.Printf("status server listening on %s", srv.Addr())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("status server error: %v", err)
			}
		}()
	}

	report, err := svc.Run(ctx, req)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("status server shutdown error: %v", err)
		}
	}

	if err != nil {
		log.Printf("error: %v", err)
		return exitFatal
	}

	printSummary(os.Stdout, report)

	if cfg.Strict && len(report.Failures()) > 0 {
		return exitFailed
	}
	return exitOK
}

func printSummary(out io.Writer, report *domain.BatchReport) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY\tOUTCOME\tSIZE\tREASON")
	for _, res := range report.Results {
		size := "-"
		if res.Size > 0 {
			size = humanize.IBytes(uint64(res.Size))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.Entry.Name, res.Outcome.Kind, size, res.Outcome.Reason())
	}
	tw.Flush()

	fmt.Fprintf(out, "\n%d entries: %d downloaded, %d extracted, %d skipped, %d failed (%s of %s)\n",
		len(report.Results),
		report.Count(domain.OutcomeDownloaded),
		report.Count(domain.OutcomeExtracted),
		report.Count(domain.OutcomeSkipped),
		len(report.Failures()),
		humanize.IBytes(uint64(report.BytesDone)),
		humanize.IBytes(uint64(report.TotalBytes)),
	)
}
