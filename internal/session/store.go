// Package session persists and restores authenticated browser storage state
// keyed by (site host, user), and owns the "are we logged in" checks built
// on top of it.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"table-scraper/internal/browser"
	"table-scraper/internal/config"
)

// quarantineSuffix marks state files that failed to load.
const quarantineSuffix = ".bad"

// Store reads and writes one (site, user) state file.
type Store struct {
	cfg    config.SessionConfig
	logger *zap.Logger
}

func NewStore(cfg config.SessionConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{cfg: cfg, logger: logger}
}

// StatePath returns the deterministic location of the state file: an
// explicit configured path, or ~/.scraper/sessions/{site}/{user}.json.
func (s *Store) StatePath() string {
	if s.cfg.Path != "" {
		return s.cfg.Path
	}
	host := s.cfg.SiteHost
	if host == "" {
		host = "site"
	}
	user := s.cfg.User
	if user == "" {
		user = "default"
	}
	return filepath.Join(DefaultBaseDir(), host, user+".json")
}

// Exists reports whether a reusable state file is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.StatePath())
	return err == nil && !info.IsDir()
}

// LoadContext opens a browser context, seeded from the stored state when
// reuse is enabled and the file loads cleanly. Unreadable or corrupt files
// are quarantined and the run starts fresh; only a failure to create the
// fresh context itself is an error.
func (s *Store) LoadContext(b browser.Browser) (browser.Context, bool, error) {
	path := s.StatePath()
	if s.cfg.Reuse {
		if state, ok := s.readState(path); ok {
			ctx, err := b.NewContext(state)
			if err == nil {
				s.logger.Info("restored session state", zap.String("path", path))
				return ctx, true, nil
			}
			s.logger.Warn("stored session state rejected by browser", zap.String("path", path), zap.Error(err))
			s.quarantine(path)
		}
	}
	ctx, err := b.NewContext(nil)
	if err != nil {
		return nil, false, fmt.Errorf("create browser context: %w", err)
	}
	return ctx, false, nil
}

// SaveContext exports the context's storage state and atomically replaces
// the state file. A temp file in the target directory plus rename keeps
// concurrent readers from ever seeing a partial write.
func (s *Store) SaveContext(ctx context.Context, c browser.Context) error {
	if !s.cfg.SaveOnSuccess {
		return nil
	}
	state, err := c.StorageState(ctx)
	if err != nil {
		return fmt.Errorf("export storage state: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage state: %w", err)
	}

	path := s.StatePath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	s.logger.Info("saved session state", zap.String("path", path))
	return nil
}

func (s *Store) readState(path string) (*browser.StorageState, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read session state", zap.String("path", path), zap.Error(err))
			s.quarantine(path)
		}
		return nil, false
	}
	var state browser.StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("session state is corrupt", zap.String("path", path), zap.Error(err))
		s.quarantine(path)
		return nil, false
	}
	return &state, true
}

// quarantine renames a bad state file aside, best-effort.
func (s *Store) quarantine(path string) {
	if err := os.Rename(path, path+quarantineSuffix); err != nil {
		s.logger.Warn("failed to quarantine session state", zap.String("path", path), zap.Error(err))
	}
}

// DefaultBaseDir is where state files live when no explicit path is set.
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".scraper", "sessions")
}

// Info describes one stored session file.
type Info struct {
	Host    string
	User    string
	Path    string
	ModTime time.Time
	Size    int64
}

// List enumerates state files under baseDir, newest first. Quarantined
// files are skipped.
func List(baseDir string) ([]Info, error) {
	hosts, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}
	var out []Info
	for _, h := range hosts {
		if !h.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(baseDir, h.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			fi, err := f.Info()
			if err != nil {
				continue
			}
			out = append(out, Info{
				Host:    h.Name(),
				User:    strings.TrimSuffix(name, ".json"),
				Path:    filepath.Join(baseDir, h.Name(), name),
				ModTime: fi.ModTime(),
				Size:    fi.Size(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out, nil
}
