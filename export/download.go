// Package export hands processed files to the host: the download directory,
// the clipboard, or data URLs.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
)

// Downloader saves files into a download directory.
type Downloader struct {
	dir         string
	permissions os.FileMode
}

// NewDownloader creates dir if needed and returns a Downloader writing there.
func NewDownloader(dir string, perm os.FileMode) (*Downloader, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryExport, "download.mkdir", fmt.Errorf("%s: %w", dir, err))
	}
	return &Downloader{dir: dir, permissions: perm}, nil
}

// DownloadAsFile writes file under filename (or file.Name when empty) and
// returns the written path.  Existing files are never overwritten: a
// " (n)" suffix is added instead.
func (d *Downloader) DownloadAsFile(ctx context.Context, file *core.SourceFile, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryExport, "download", err)
	}
	if file == nil {
		return "", apperrors.New(apperrors.CategoryExport, "download", apperrors.ErrEmptyInput)
	}
	if filename == "" {
		filename = file.Name
	}
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		name = "download" + core.FormatFromMime(file.ContentType).Extension()
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 0; ; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
		}
		path := filepath.Join(d.dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, d.permissions)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", apperrors.Wrap(apperrors.CategoryExport, "download.open", err)
		}
		if _, err := f.Write(file.Data); err != nil {
			f.Close()
			_ = os.Remove(path)
			return "", apperrors.Wrap(apperrors.CategoryExport, "download.write", err)
		}
		if err := f.Close(); err != nil {
			return "", apperrors.Wrap(apperrors.CategoryExport, "download.close", err)
		}
		return path, nil
	}
}
