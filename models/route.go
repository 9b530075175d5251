// Package models defines data structures used throughout the server.
package models

import "net/http"

// ResolvedPath is a request path mapped onto the webroot.
type ResolvedPath struct {
	// Name is the slash-separated, webroot-relative name (e.g. "css/style.css").
	// Rule matching is always done against Name.
	Name string
	// AbsPath is the absolute filesystem path Name maps to.
	AbsPath string
}

// OutcomeKind identifies which of the five routing decisions applies to a
// request.
type OutcomeKind int

const (
	Serve OutcomeKind = iota
	Forbidden
	Redirect
	ServerError
	NotFound
)

var outcomeNames = [...]string{
	Serve:       "serve",
	Forbidden:   "forbidden",
	Redirect:    "redirect",
	ServerError: "error",
	NotFound:    "not-found",
}

func (k OutcomeKind) String() string {
	if k < 0 || int(k) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[k]
}

// StatusCode returns the HTTP status written for this kind of outcome.
func (k OutcomeKind) StatusCode() int {
	switch k {
	case Serve:
		return http.StatusOK
	case Forbidden:
		return http.StatusForbidden
	case Redirect:
		return http.StatusFound
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RouteOutcome is the single decision produced for one request.
// Only the fields relevant to Kind are populated.
type RouteOutcome struct {
	Kind OutcomeKind

	// FilePath and MIMEType are set for Serve.
	FilePath string
	MIMEType string

	// Location is set for Redirect.
	Location string

	// Err records why a non-Serve outcome was chosen. It is logged but never
	// sent to the client.
	Err error
}
