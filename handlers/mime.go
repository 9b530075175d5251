package handlers

import (
	"path"
	"strings"
)

// fallbackMIME is used for any extension missing from mimeTypes.
const fallbackMIME = "application/octet-stream"

// mimeTypes is the only source of Content-Type values for served files.
// Neither the OS registry nor content sniffing is consulted, so the same
// name always yields the same type on every host.
var mimeTypes = map[string]string{
	// --- markup / docs ---
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".css":      "text/css",
	".xml":      "text/xml",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".csv":      "text/csv",
	".tsv":      "text/tab-separated-values",
	".ics":      "text/calendar",
	".vtt":      "text/vtt",

	// --- scripts / data ---
	".js":          "text/javascript",
	".mjs":         "text/javascript",
	".json":        "application/json",
	".jsonld":      "application/ld+json",
	".map":         "application/json",
	".webmanifest": "application/manifest+json",
	".wasm":        "application/wasm",
	".yaml":        "text/yaml",
	".yml":         "text/yaml",
	".toml":        "text/x-toml",
	".rss":         "application/rss+xml",
	".atom":        "application/atom+xml",

	// --- images ---
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",

	// --- fonts ---
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",

	// --- audio / video ---
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".ogv":  "video/ogg",
	".mov":  "video/quicktime",

	// --- documents / archives ---
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tgz":  "application/gzip",
	".tar":  "application/x-tar",
	".bz2":  "application/x-bzip2",
	".xz":   "application/x-xz",
	".7z":   "application/x-7z-compressed",
	".rtf":  "application/rtf",
	".epub": "application/epub+zip",
}

// MIMEForName returns the Content-Type for name based solely on its
// extension, matched case-insensitively.
func MIMEForName(name string) string {
	if t, ok := mimeTypes[strings.ToLower(path.Ext(name))]; ok {
		return t
	}
	return fallbackMIME
}
