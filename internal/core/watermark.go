package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kilupskalvis/finsync/internal/models"
)

// Watermark persists the timestamp of the newest pulled change in a
// single-line text file. A missing file means nothing was pulled yet.
type Watermark struct {
	path string
	mu   sync.Mutex
}

// NewWatermark returns a watermark stored at path.
func NewWatermark(path string) *Watermark {
	return &Watermark{path: path}
}

// Path returns the state file location.
func (w *Watermark) Path() string {
	return w.path
}

// Load returns the stored timestamp, or "" when there is none.
func (w *Watermark) Load() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.load()
}

func (w *Watermark) load() (string, error) {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read watermark: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return "", nil
	}
	ts, err := models.NormalizeTimestamp(raw)
	if err != nil {
		return "", fmt.Errorf("watermark %s: %w", w.path, err)
	}
	return ts, nil
}

// Advance stores ts if it is newer than the current value. It reports
// whether the file changed. The watermark never moves backwards.
func (w *Watermark) Advance(ts string) (bool, error) {
	next, err := models.NormalizeTimestamp(ts)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cur, err := w.load()
	if err != nil {
		return false, err
	}
	if cur != "" && next <= cur {
		return false, nil
	}
	if err := writeFileAtomic(w.path, []byte(next+"\n")); err != nil {
		return false, fmt.Errorf("write watermark: %w", err)
	}
	return true, nil
}

// Reset removes the watermark so the next pull fetches everything.
func (w *Watermark) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset watermark: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path through a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
