// Command icsfeed fetches the dojo's monthly schedule pages and serves them
// as one iCalendar feed. With -once it writes the feed to stdout and exits,
// matching the original exporter's behavior; otherwise it serves HTTP and
// refreshes on a cron schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shinbukan/icsfeed"
	"github.com/shinbukan/icsfeed/feed"
	"github.com/shinbukan/icsfeed/internal/config"
	"github.com/shinbukan/icsfeed/internal/server"
	"github.com/shinbukan/icsfeed/internal/source"
	"github.com/shinbukan/icsfeed/temporal"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (optional; env vars always apply)")
		listen     = flag.String("listen", "", "HTTP listen address (overrides config)")
		once       = flag.Bool("once", false, "generate the feed once, write it to stdout and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	logger := newLogger(cfg.LogLevel)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("unknown timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	app := &app{cfg: cfg, loc: loc, logger: logger, srv: server.New(logger)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		os.Exit(app.runOnce(ctx))
	}
	if err := app.serve(ctx); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    config.Config
	loc    *time.Location
	logger *slog.Logger
	srv    *server.Server
}

// generate runs one full pass: fetch every source, assemble, serialize.
func (a *app) generate(ctx context.Context, now time.Time) ([]byte, int, error) {
	var (
		records   []icsfeed.Record
		srcErrors []error
	)

	if a.cfg.BaseURL != "" {
		client := &source.Client{
			BaseURL:  a.cfg.BaseURL,
			Username: a.cfg.Username,
			Password: a.cfg.Password,
			Location: a.loc,
			Logger:   a.logger,
		}
		from := now.AddDate(0, -a.cfg.LookbackMonths, 0)
		// One extra page so the month the window end falls in is covered.
		months := a.cfg.LookbackMonths + a.cfg.LookaheadMonths + 1
		for _, res := range client.Months(ctx, from, months) {
			records = append(records, res.Records...)
			srcErrors = append(srcErrors, res.Errors...)
		}
	}
	for _, url := range a.cfg.ICSSources {
		recs, warns, err := source.FetchICS(ctx, nil, url)
		if err != nil {
			srcErrors = append(srcErrors, err)
			continue
		}
		records = append(records, recs...)
		srcErrors = append(srcErrors, warns...)
	}
	for _, err := range srcErrors {
		a.logger.Warn("source problem", "error", err)
	}

	window := temporal.Window{
		Start: now.AddDate(0, -a.cfg.LookbackMonths, 0),
		End:   now.AddDate(0, a.cfg.LookaheadMonths, 0),
	}
	meta := feed.Metadata{
		ProdID:  a.cfg.ProdID,
		Name:    a.cfg.CalendarName,
		Refresh: a.cfg.RefreshHint,
	}

	body, warnings, err := icsfeed.Generate(records, window, now, meta)
	if err != nil {
		return nil, 0, err
	}
	for _, w := range warnings {
		a.logger.Warn("record excluded from feed", "event_id", w.EventID, "error", w.Err)
	}
	return body, len(srcErrors) + len(warnings), nil
}

// runOnce mirrors the original exporter: feed on stdout, problems on
// stderr, nonzero exit when anything was dropped.
func (a *app) runOnce(ctx context.Context) int {
	body, problems, err := a.generate(ctx, time.Now())
	if err != nil {
		a.logger.Error("feed generation failed", "error", err)
		return 1
	}
	os.Stdout.Write(body)
	if problems > 0 {
		return 1
	}
	return 0
}

func (a *app) refresh(ctx context.Context) {
	now := time.Now()
	body, problems, err := a.generate(ctx, now)
	if err != nil {
		// Keep serving the previous snapshot.
		a.logger.Error("feed regeneration failed; keeping previous snapshot", "error", err)
		return
	}
	a.srv.SetSnapshot(server.NewSnapshot(body, problems, now))
	a.logger.Info("feed regenerated", "bytes", len(body), "problems", problems)
}

func (a *app) serve(ctx context.Context) error {
	a.refresh(ctx)

	c := cron.New()
	if _, err := c.AddFunc(a.cfg.RefreshCron, func() { a.refresh(ctx) }); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", a.cfg.RefreshCron, err)
	}
	c.Start()
	defer c.Stop()

	httpSrv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           a.srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
