// Package server wires the router into an HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/fatih/color"

	"webgate/config"
	"webgate/handlers"
)

const (
	// idleTimeout closes keep-alive connections that stopped sending requests.
	idleTimeout = 120 * time.Second
	// shutdownTimeout bounds how long in-flight requests may take to finish
	// once shutdown starts.
	shutdownTimeout = 10 * time.Second
	// statsFlushInterval is how often dirty counters are written to disk.
	statsFlushInterval = 30 * time.Second
)

// Run listens on cfg.Addr() and serves until ctx is cancelled, then shuts
// down gracefully.
func Run(ctx context.Context, cfg *config.Config) error {
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}
	return serve(ctx, cfg, ln)
}

func serve(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	var fsys handlers.FileSystem = handlers.OSFileSystem{}
	if cfg.StatCache {
		cache := handlers.NewStatCache(fsys, 0)
		stop, err := cache.Watch(cfg.Webroot())
		if err != nil {
			log.Printf("watcher: could not start filesystem watcher: %v; stat cache disabled", err)
		} else {
			defer stop()
			fsys = cache
		}
	}

	stats := handlers.NewOutcomeStats(cfg.StatsDir)
	statsCtx, cancelStats := context.WithCancel(context.Background())
	statsDone := make(chan struct{})
	go func() {
		defer close(statsDone)
		stats.Run(statsCtx, statsFlushInterval)
	}()
	defer func() {
		cancelStats()
		<-statsDone
	}()

	bw := handlers.NewBandwidthManager(cfg.BandwidthLimit)
	srv := newHTTPServer(cfg, newHandler(cfg, fsys, stats, bw))

	logStartup(cfg, ln.Addr().String(), fsys)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// newHandler builds the handler chain. The router is mounted directly,
// without an http.ServeMux, so request paths reach the resolver uncleaned
// and traversal attempts are answered with 403 instead of a mux redirect.
func newHandler(cfg *config.Config, fsys handlers.FileSystem, stats *handlers.OutcomeStats, bw *handlers.BandwidthManager) http.Handler {
	return recoverPanics(handlers.WithRequestID(bw.Wrap(handlers.RouteHandler(cfg, fsys, stats))))
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: h,

		// Both header and body reads share the configured request timeout.
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       idleTimeout,
	}
	if cfg.CloseConnections {
		srv.SetKeepAlivesEnabled(false)
	}
	return srv
}

// recoverPanics turns a panic in h into a logged 500 so one bad request
// cannot take the connection down with it.
func recoverPanics(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Printf("panic serving %s: %v\n%s", r.URL.Path, rec, debug.Stack())
				http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
			}
		}()
		h.ServeHTTP(w, r)
	})
}

// logStartup prints a summary of the active configuration.
func logStartup(cfg *config.Config, addr string, fsys handlers.FileSystem) {
	title := color.New(color.Bold).Sprint("webgate")
	sep := "-------------------------------------------"
	log.Println(sep)
	log.Printf("  %s", title)
	log.Println(sep)
	log.Printf("  %-18s %s", "Address:", "http://"+addr)
	log.Printf("  %-18s %s", "Webroot:", cfg.Webroot())
	log.Printf("  %-18s %s", "Default document:", cfg.DefaultDocument())
	log.Printf("  %-18s %s", "Forbidden:", listOrNone(cfg.Forbidden()))
	log.Printf("  %-18s %s", "Failure triggers:", listOrNone(cfg.FailureTriggers()))

	redirects := cfg.Redirects()
	if len(redirects) == 0 {
		log.Printf("  %-18s %s", "Redirects:", "(none)")
	} else {
		log.Printf("  %-18s %d", "Redirects:", len(redirects))
		for from, to := range redirects {
			log.Printf("    %-16s -> %s", from, to)
		}
	}

	log.Printf("  %-18s %s", "Read timeout:", cfg.ReadTimeout)
	if cfg.BandwidthLimit > 0 {
		log.Printf("  %-18s %s", "Bandwidth limit:", handlers.FormatBits(cfg.BandwidthLimit))
	} else {
		log.Printf("  %-18s %s", "Bandwidth limit:", "unlimited")
	}
	_, cached := fsys.(*handlers.StatCache)
	log.Printf("  %-18s %s", "Stat cache:", enabledStr(cached))
	log.Printf("  %-18s %s", "Keep-alive:", enabledStr(!cfg.CloseConnections))
	if cfg.StatsDir != "" {
		log.Printf("  %-18s %s", "Stats dir:", cfg.StatsDir)
	} else {
		log.Printf("  %-18s %s", "Stats dir:", "(memory only)")
	}
	log.Println(sep)
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

// enabledStr returns "on" or "off" for use in startup log lines.
func enabledStr(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
