package handlers

import (
	"errors"
	"fmt"

	"webgate/config"
	"webgate/models"
)

// Route decides how a request for requestPath is answered. Rules are
// checked in a fixed order and the first match wins:
//
//  1. traversal or forbidden name -> Forbidden
//  2. redirect rule               -> Redirect
//  3. failure trigger             -> ServerError
//  4. missing or non-regular file -> NotFound
//  5. anything else               -> Serve
//
// Route only stats the file; reading happens in Respond.
func Route(requestPath string, cfg *config.Config, fsys FileSystem) models.RouteOutcome {
	resolved, err := Resolve(requestPath, cfg)
	if err != nil {
		return models.RouteOutcome{Kind: models.Forbidden, Err: err}
	}
	if cfg.IsForbidden(resolved.Name) {
		return models.RouteOutcome{Kind: models.Forbidden, Err: fmt.Errorf("%w: %s", ErrForbidden, resolved.Name)}
	}

	if to, ok := cfg.RedirectTarget(resolved.Name); ok {
		return models.RouteOutcome{Kind: models.Redirect, Location: to}
	}

	if cfg.IsFailureTrigger(resolved.Name) {
		return models.RouteOutcome{Kind: models.ServerError, Err: fmt.Errorf("%w: %s", ErrSimulatedFailure, resolved.Name)}
	}

	info, err := fsys.Stat(resolved.AbsPath)
	if err != nil {
		return models.RouteOutcome{Kind: models.NotFound, Err: fmt.Errorf("%w: %v", ErrNotFound, err)}
	}
	if !info.Mode().IsRegular() {
		return models.RouteOutcome{Kind: models.NotFound, Err: fmt.Errorf("%w: %s is not a regular file", ErrNotFound, resolved.Name)}
	}

	return models.RouteOutcome{
		Kind:     models.Serve,
		FilePath: resolved.AbsPath,
		MIMEType: MIMEForName(resolved.Name),
	}
}

// reason returns a short log-friendly description of why o was chosen.
func reason(o models.RouteOutcome) string {
	switch {
	case o.Err == nil:
		return "-"
	case errors.Is(o.Err, ErrTraversal):
		return "traversal"
	default:
		return o.Err.Error()
	}
}
