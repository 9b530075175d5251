// Package handlers resolves, routes and answers requests for files under the webroot.
package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fatih/color"

	"webgate/config"
	"webgate/models"
)

// Static bodies for the error outcomes. The client never sees the
// underlying reason.
const (
	forbiddenBody   = "403 Forbidden"
	notFoundBody    = "404 Not Found"
	serverErrorBody = "500 Internal Server Error"
)

// RouteHandler answers every request by routing its path and writing the
// resulting outcome. GET and HEAD are routed; any other method is answered
// with a 500. stats may be nil.
func RouteHandler(cfg *config.Config, fsys FileSystem, stats *OutcomeStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var outcome models.RouteOutcome
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			outcome = models.RouteOutcome{Kind: models.ServerError, Err: fmt.Errorf("%w: %s", ErrMethod, r.Method)}
		} else {
			outcome = Route(r.URL.Path, cfg, fsys)
		}

		outcome, n := Respond(w, r, outcome, fsys)
		stats.Record(outcome.Kind, n)

		log.Printf("request %s  id=%s  ip=%-15s  %s %s  size=%-10s  duration=%s  reason=%s",
			statusLabel(outcome.Kind), RequestID(r.Context()), clientIP(r), r.Method, r.URL.Path,
			formatSize(int64(n)), time.Since(start).Round(time.Microsecond), reason(outcome))
	}
}

// Respond writes outcome to w and returns the outcome actually sent along
// with the number of body bytes. A Serve whose file can no longer be read
// is downgraded to ServerError before any header is written.
func Respond(w http.ResponseWriter, r *http.Request, outcome models.RouteOutcome, fsys FileSystem) (models.RouteOutcome, int) {
	switch outcome.Kind {
	case models.Serve:
		data, err := readFile(r.Context(), fsys, outcome.FilePath)
		if err != nil {
			outcome = models.RouteOutcome{Kind: models.ServerError, Err: fmt.Errorf("%w: %v", ErrAccess, err)}
			http.Error(w, serverErrorBody, http.StatusInternalServerError)
			return outcome, len(serverErrorBody) + 1
		}
		w.Header().Set("Content-Type", outcome.MIMEType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return outcome, 0
		}
		n, _ := w.Write(data)
		return outcome, n

	case models.Redirect:
		body := "302 Found: " + outcome.Location + "\n"
		w.Header().Set("Location", outcome.Location)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusFound)
		if r.Method == http.MethodHead {
			return outcome, 0
		}
		n, _ := w.Write([]byte(body))
		return outcome, n

	case models.Forbidden:
		http.Error(w, forbiddenBody, http.StatusForbidden)
		return outcome, len(forbiddenBody) + 1

	case models.NotFound:
		http.Error(w, notFoundBody, http.StatusNotFound)
		return outcome, len(notFoundBody) + 1

	default:
		outcome.Kind = models.ServerError
		http.Error(w, serverErrorBody, http.StatusInternalServerError)
		return outcome, len(serverErrorBody) + 1
	}
}

var (
	okColor       = color.New(color.FgGreen)
	redirectColor = color.New(color.FgCyan)
	clientColor   = color.New(color.FgYellow)
	failColor     = color.New(color.FgRed, color.Bold)
)

// statusLabel renders "200 serve" style labels, coloured when the log goes
// to a terminal.
func statusLabel(k models.OutcomeKind) string {
	label := fmt.Sprintf("%d %-9s", k.StatusCode(), k)
	switch k {
	case models.Serve:
		return okColor.Sprint(label)
	case models.Redirect:
		return redirectColor.Sprint(label)
	case models.ServerError:
		return failColor.Sprint(label)
	default:
		return clientColor.Sprint(label)
	}
}

// formatSize formats a byte count as a human-readable string.
func formatSize(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
