package handlers

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
)

// FileSystem is the filesystem the router reads from. Names are absolute
// OS paths already checked to lie under the webroot.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	Open(name string) (fs.File, error)
}

// OSFileSystem reads straight from the operating system.
type OSFileSystem struct{}

func (OSFileSystem) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OSFileSystem) Open(name string) (fs.File, error) { return os.Open(name) }

// readChunk is the read size used while loading a file to serve.
const readChunk = 32 * 1024

// readFile loads the whole file at name. The read stops early with the
// context's error when ctx is cancelled (e.g. the client went away).
func readFile(ctx context.Context, fsys FileSystem, name string) ([]byte, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if info, err := f.Stat(); err == nil && info.Size() > 0 {
		buf.Grow(int(info.Size()))
	}

	chunk := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := f.Read(chunk)
		buf.Write(chunk[:n])
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
