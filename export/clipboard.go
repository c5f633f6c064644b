package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"sync"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
)

// Clipboard accepts typed content.
type Clipboard interface {
	Write(ctx context.Context, mimeType string, data []byte) error
}

// CopyToClipboard places file on cb under its declared MIME type.
func CopyToClipboard(ctx context.Context, cb Clipboard, file *core.SourceFile) error {
	if file == nil || len(file.Data) == 0 {
		return apperrors.New(apperrors.CategoryExport, "clipboard", apperrors.ErrEmptyInput)
	}
	mt := file.ContentType
	if mt == "" {
		mt = "application/octet-stream"
	}
	if err := cb.Write(ctx, mt, file.Data); err != nil {
		return apperrors.Wrap(apperrors.CategoryExport, "clipboard", err)
	}
	return nil
}

// ToDataURL encodes file as a base64 data URL.
func ToDataURL(file *core.SourceFile) (string, error) {
	if file == nil || len(file.Data) == 0 {
		return "", apperrors.New(apperrors.CategoryExport, "data_url", apperrors.ErrEmptyInput)
	}
	mt := file.ContentType
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(file.Data), nil
}

// CommandClipboard pipes content into the first available clipboard utility
// (wl-copy on Wayland, xclip on X11).
type CommandClipboard struct {
	lookPath func(string) (string, error)
}

// NewCommandClipboard returns a clipboard backed by the system utilities.
func NewCommandClipboard() *CommandClipboard {
	return &CommandClipboard{lookPath: exec.LookPath}
}

func (c *CommandClipboard) command(mimeType string) ([]string, error) {
	if path, err := c.lookPath("wl-copy"); err == nil {
		return []string{path, "--type", mimeType}, nil
	}
	if path, err := c.lookPath("xclip"); err == nil {
		return []string{path, "-selection", "clipboard", "-t", mimeType, "-i"}, nil
	}
	return nil, apperrors.ErrNoClipboard
}

func (c *CommandClipboard) Write(ctx context.Context, mimeType string, data []byte) error {
	argv, err := c.command(mimeType)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", argv[0], err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// MemoryClipboard keeps the last written content in memory.
type MemoryClipboard struct {
	mu       sync.Mutex
	mimeType string
	data     []byte
}

func (m *MemoryClipboard) Write(_ context.Context, mimeType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mimeType = mimeType
	m.data = append(m.data[:0], data...)
	return nil
}

// Contents returns the last written MIME type and bytes.
func (m *MemoryClipboard) Contents() (string, []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mimeType, append([]byte(nil), m.data...)
}
