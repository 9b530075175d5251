package handlers

import (
	"path/filepath"
	"strings"

	"webgate/config"
	"webgate/models"
)

// Resolve translates a request path into a webroot-relative name and an
// absolute filesystem path. The root path "/" is replaced by the default
// document. Paths that climb above the webroot fail with ErrTraversal.
func Resolve(requestPath string, cfg *config.Config) (models.ResolvedPath, error) {
	if requestPath == "/" || requestPath == "" {
		requestPath = cfg.DefaultDocument()
	}

	name, err := config.CleanName(requestPath)
	if err != nil {
		return models.ResolvedPath{}, ErrTraversal
	}

	root := cfg.Webroot()
	fsPath := filepath.Join(root, filepath.FromSlash(name))

	// Security: ensure resolved path is still under the webroot.
	rel, err := filepath.Rel(root, fsPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return models.ResolvedPath{}, ErrTraversal
	}

	return models.ResolvedPath{Name: name, AbsPath: fsPath}, nil
}
