package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/de-tools/market-pulse/pkg/models/domain"
)

// ErrNotFound is returned when no document (or variant) exists for the
// requested date.
var ErrNotFound = errors.New("report not found")

const (
	docExt   = ".json"
	textExt  = ".txt"
	debugExt = ".log"
)

// Store persists one report document per calendar date.
type Store interface {
	Exists(date string) bool
	Read(date string) (*domain.Report, error)
	Write(date string, report *domain.Report) error
	ReadRaw(date string) ([]byte, error)
	ReadText(date string) (string, error)
	ReadDebugLog(date string) (string, error)
	AppendDebugLog(date string, line string) error
	List() ([]string, error)
}

// FileStore keeps documents as <dir>/<date>.json with the narrative
// text alongside as <date>.txt and an optional <date>.log debug
// capture.
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed and returns a
// store rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(date, ext string) string {
	return filepath.Join(s.dir, date+ext)
}

// Exists reports whether a document is stored for date.
func (s *FileStore) Exists(date string) bool {
	_, err := os.Stat(s.path(date, docExt))
	return err == nil
}

// Read returns the stored document for date.
func (s *FileStore) Read(date string) (*domain.Report, error) {
	raw, err := s.ReadRaw(date)
	if err != nil {
		return nil, err
	}
	var report domain.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", date, err)
	}
	return &report, nil
}

// Write atomically replaces the document for date. The document is
// written to a temp file in the same directory and renamed into place
// so a concurrent reader never observes a partial file. The narrative
// text variant is refreshed in the same way.
func (s *FileStore) Write(date string, report *domain.Report) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", date, err)
	}
	if err := s.replace(s.path(date, docExt), raw); err != nil {
		return err
	}
	return s.replace(s.path(date, textExt), []byte(report.NarrativeRaw))
}

func (s *FileStore) replace(dst string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", dst, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", dst, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", dst, err)
	}
	return nil
}

// ReadRaw returns the serialized document bytes for date.
func (s *FileStore) ReadRaw(date string) ([]byte, error) {
	raw, err := os.ReadFile(s.path(date, docExt))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, date)
		}
		return nil, fmt.Errorf("failed to read report %s: %w", date, err)
	}
	return raw, nil
}

// ReadText returns the narrative text variant for date.
func (s *FileStore) ReadText(date string) (string, error) {
	return s.readVariant(date, textExt)
}

// ReadDebugLog returns the debug capture for date. It only exists when
// debug capture was enabled for that run.
func (s *FileStore) ReadDebugLog(date string) (string, error) {
	return s.readVariant(date, debugExt)
}

func (s *FileStore) readVariant(date, ext string) (string, error) {
	raw, err := os.ReadFile(s.path(date, ext))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, date)
		}
		return "", fmt.Errorf("failed to read %s%s: %w", date, ext, err)
	}
	return string(raw), nil
}

// AppendDebugLog appends one timestamped line to the debug capture for
// date, creating it on first use.
func (s *FileStore) AppendDebugLog(date string, line string) error {
	f, err := os.OpenFile(s.path(date, debugExt), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open debug log %s: %w", date, err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s %s\n", time.Now().Format(time.RFC3339), line)
	return err
}

// List returns the dates with a stored document, most recent first.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	var dates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, docExt) {
			continue
		}
		date := strings.TrimSuffix(name, docExt)
		if _, err := time.Parse(domain.DateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}
