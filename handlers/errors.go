package handlers

import (
	"errors"

	"webgate/config"
)

// Routing failures. All of them are turned into an HTTP outcome inside the
// router; none reach the client verbatim.
var (
	// ErrTraversal marks a request that resolved above the webroot.
	ErrTraversal = config.ErrTraversal
	// ErrNotFound marks a missing or non-regular file.
	ErrNotFound = errors.New("file not found")
	// ErrAccess marks a read that failed after the file was found.
	ErrAccess = errors.New("file not readable")
	// ErrSimulatedFailure marks a configured failure trigger.
	ErrSimulatedFailure = errors.New("simulated failure")
	// ErrForbidden marks a name in the forbidden set.
	ErrForbidden = errors.New("forbidden file")
	// ErrMethod marks a request method other than GET or HEAD.
	ErrMethod = errors.New("unsupported method")
)
