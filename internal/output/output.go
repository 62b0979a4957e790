// Package output places report artifacts on disk.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Bada35/Write-With-Jira/internal/metrics"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Mode selects how an existing report file is treated.
type Mode int

const (
	// Overwrite replaces any existing content.
	Overwrite Mode = iota
	// Append adds to the end of any existing content.
	Append
)

// FileName returns <dir>/<base>-<date>.md.
func FileName(dir, base string, date time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.md", base, date.Format(dateLayout)))
}

// TeamFileName returns <dir>/<base>-<repository name>-<date>.md, where the
// repository name is the last element of repositoryPath.
func TeamFileName(dir, base, repositoryPath string, date time.Time) string {
	name := path.Base(strings.TrimSuffix(repositoryPath, "/"))
	return FileName(dir, base+"-"+name, date)
}

// HTMLFileName swaps the markdown extension of name for .html.
func HTMLFileName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".html"
}

// Writer writes report files, creating parent directories as needed.
type Writer struct {
	logger   *zap.Logger
	recorder *metrics.Recorder
	// HTML also renders every markdown report next to it.
	HTML bool
}

// NewWriter creates a file writer.
func NewWriter(logger *zap.Logger, recorder *metrics.Recorder) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger, recorder: recorder}
}

// WriteReport writes a markdown report of kind to name.
func (w *Writer) WriteReport(kind, name, content string, mode Mode) error {
	if err := writeFile(name, []byte(content), mode); err != nil {
		return fmt.Errorf("write %s report: %w", kind, err)
	}
	w.recorder.ReportWritten(kind)
	w.logger.Info("report written", zap.String("kind", kind), zap.String("path", name))

	if !w.HTML {
		return nil
	}
	full := content
	if mode == Append {
		existing, err := os.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s report: %w", kind, err)
		}
		full = string(existing)
	}
	rendered, err := RenderHTML(full)
	if err != nil {
		return fmt.Errorf("render %s report: %w", kind, err)
	}
	htmlName := HTMLFileName(name)
	if err := writeFile(htmlName, rendered, Overwrite); err != nil {
		return fmt.Errorf("write %s html: %w", kind, err)
	}
	w.logger.Info("report rendered", zap.String("kind", kind), zap.String("path", htmlName))
	return nil
}

// WriteJSON writes v to name as indented JSON.
func (w *Writer) WriteJSON(kind, name string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := writeFile(name, payload, Overwrite); err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	w.recorder.ReportWritten(kind)
	w.logger.Info("detail written", zap.String("kind", kind), zap.String("path", name))
	return nil
}

// ReadOptional returns the content of name, or "" when it does not exist.
func ReadOptional(name string) (string, error) {
	content, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// RenderHTML renders GitHub-flavored markdown.
func RenderHTML(markdown string) ([]byte, error) {
	renderer := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(markdown), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFile(name string, content []byte, mode Mode) error {
	if dir := filepath.Dir(name); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if mode == Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(name, flags, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
