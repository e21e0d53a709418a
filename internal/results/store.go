// Package results persists finished scrapes as run directories: newline
// delimited records plus a small metadata document, addressable by run id.
package results

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"table-scraper/internal/scraper"
)

const (
	recordsFile = "result.jsonl"
	metaFile    = "meta.json"
)

// Meta describes one stored run.
type Meta struct {
	RunID     string    `json:"run_id"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	PageCount int       `json:"page_count"`
	Timestamp time.Time `json:"timestamp"`
}

// Store writes and reads run directories under one data dir.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory the store writes under.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes a result as a new run directory named
// {date}-{time}-{host}-{user} and returns its metadata.
func (s *Store) Save(res *scraper.Result, host, user string) (*Meta, error) {
	now := time.Now().UTC()
	id := runID(now, host, user)
	dir := filepath.Join(s.dir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, recordsFile))
	if err != nil {
		return nil, fmt.Errorf("create records file: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, rec := range res.Records() {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return nil, fmt.Errorf("write record: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close records file: %w", err)
	}

	meta := &Meta{
		RunID:     id,
		Rows:      len(res.Rows),
		Cols:      res.Width(),
		PageCount: res.PageCount,
		Timestamp: now,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write meta: %w", err)
	}
	return meta, nil
}

// Load reads one run's metadata and records. The error satisfies
// os.IsNotExist when the run id is unknown.
func (s *Store) Load(id string) (*Meta, []map[string]string, error) {
	if !validRunID(id) {
		return nil, nil, os.ErrNotExist
	}
	dir := filepath.Join(s.dir, id)

	metaData, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return nil, nil, err
	}
	var meta Meta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, nil, fmt.Errorf("decode meta: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, recordsFile))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var items []map[string]string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec map[string]string
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, nil, fmt.Errorf("decode record: %w", err)
		}
		items = append(items, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read records: %w", err)
	}
	return &meta, items, nil
}

// List returns the metadata of every stored run, newest first.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var out []Meta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name(), metaFile))
		if err != nil {
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

var (
	labelRe = regexp.MustCompile(`[^a-z0-9]+`)
	runIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)
)

func runID(t time.Time, host, user string) string {
	return fmt.Sprintf("%s-%s-%s", t.Format("2006-01-02-150405"), label(host, "site"), label(user, "default"))
}

// label reduces a host or user name to a safe directory component.
func label(s, fallback string) string {
	s = labelRe.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallback
	}
	return s
}

// validRunID keeps Load from walking outside the data dir.
func validRunID(id string) bool {
	return runIDRe.MatchString(id)
}
