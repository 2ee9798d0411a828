// Package settings persists the debounce tunables in an INI file grouped by
// section, with environment overrides, range checks and a file watcher so
// edits apply without restarting capture.
package settings

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
)

// DefaultFileName is used when no path is given.
const DefaultFileName = "Settings.ini"

// EnvPrefix prefixes environment overrides, e.g.
// SCROLL_STABILIZER_GENERAL_BLOCK_INTERVAL=0.3.
const EnvPrefix = "SCROLL_STABILIZER"

// Keys are "section.option"; options without a section live in [General].
const (
	KeyBlockInterval            = "general.block_interval"
	KeyDirectionChangeThreshold = "general.direction_change_threshold"
	KeyEnabled                  = "general.enabled"
)

// Accepted ranges.
const (
	MinTimeThreshold        = 50 * time.Millisecond
	MaxTimeThreshold        = 2 * time.Second
	MinDirectionChangeCount = 1
	MaxDirectionChangeCount = 10
)

// Store is a typed view over the settings file.
type Store struct {
	mu   sync.Mutex
	path string

	// v is what the engine sees: file values under environment overrides.
	// disk holds only file values and setters, and is what Commit writes.
	v    *viper.Viper
	disk *viper.Viper

	// config as last read from or written to disk
	onDisk logic.Config
}

// DefaultPath returns config/Settings.ini next to the running executable.
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("config", DefaultFileName)
	}
	return filepath.Join(filepath.Dir(exe), "config", DefaultFileName)
}

// Open loads the settings file at path. A missing file is not an error:
// defaults apply until Commit writes one.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	v, disk, err := load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{v: v, disk: disk, path: path}
	s.onDisk = configOf(s.v)
	return s, nil
}

// load parses path once into both views.
func load(path string) (v, disk *viper.Viper, err error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("read settings %q: %w", path, err)
	}
	exists := err == nil

	v = newViper(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	disk = newViper(path)

	if exists {
		for _, vp := range []*viper.Viper{v, disk} {
			if err := vp.ReadConfig(bytes.NewReader(data)); err != nil {
				return nil, nil, fmt.Errorf("parse settings %q: %w", path, err)
			}
		}
	}
	return v, disk, nil
}

func newViper(path string) *viper.Viper {
	v := viper.NewWithOptions(viper.WithCodecRegistry(codecs))
	v.SetDefault(KeyBlockInterval, logic.DefaultTimeThreshold.Seconds())
	v.SetDefault(KeyDirectionChangeThreshold, logic.DefaultDirectionChangeCount)
	v.SetDefault(KeyEnabled, true)

	typ := strings.TrimPrefix(filepath.Ext(path), ".")
	if typ == "" {
		typ = "ini"
	}
	v.SetConfigType(typ)
	return v
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// TimeThreshold returns the block interval, clamped to the accepted range.
func (s *Store) TimeThreshold() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return timeThreshold(s.v)
}

// Unparsable values fall back to the default rather than the range floor.
func timeThreshold(v *viper.Viper) time.Duration {
	secs, err := cast.ToFloat64E(v.Get(KeyBlockInterval))
	switch {
	case err != nil || math.IsNaN(secs) || math.IsInf(secs, 0):
		return logic.DefaultTimeThreshold
	case secs > MaxTimeThreshold.Seconds():
		return MaxTimeThreshold
	}
	return clampDuration(time.Duration(secs * float64(time.Second)))
}

// DirectionChangeCount returns the reversal threshold, clamped.
func (s *Store) DirectionChangeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return directionChangeCount(s.v)
}

func directionChangeCount(v *viper.Viper) int {
	n, err := cast.ToIntE(v.Get(KeyDirectionChangeThreshold))
	if err != nil {
		return logic.DefaultDirectionChangeCount
	}
	return clampCount(n)
}

// Enabled reports whether stabilization is on.
func (s *Store) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return enabled(s.v)
}

func enabled(v *viper.Viper) bool {
	on, err := cast.ToBoolE(v.Get(KeyEnabled))
	if err != nil {
		return true
	}
	return on
}

// Config returns all tunables as an engine config.
func (s *Store) Config() logic.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return configOf(s.v)
}

func configOf(v *viper.Viper) logic.Config {
	return logic.Config{
		TimeThreshold:        timeThreshold(v),
		DirectionChangeCount: directionChangeCount(v),
		Enabled:              enabled(v),
	}
}

func (s *Store) set(key string, value any) {
	s.v.Set(key, value)
	s.disk.Set(key, value)
}

// SetTimeThreshold stores the block interval. Not persisted until Commit.
func (s *Store) SetTimeThreshold(d time.Duration) {
	s.mu.Lock()
	s.set(KeyBlockInterval, clampDuration(d).Seconds())
	s.mu.Unlock()
}

// SetDirectionChangeCount stores the reversal threshold. Not persisted until Commit.
func (s *Store) SetDirectionChangeCount(n int) {
	s.mu.Lock()
	s.set(KeyDirectionChangeThreshold, clampCount(n))
	s.mu.Unlock()
}

// SetEnabled toggles stabilization. Not persisted until Commit.
func (s *Store) SetEnabled(on bool) {
	s.mu.Lock()
	s.set(KeyEnabled, on)
	s.mu.Unlock()
}

// Apply stores every tunable from cfg. Not persisted until Commit.
func (s *Store) Apply(cfg logic.Config) {
	s.mu.Lock()
	s.apply(cfg)
	s.mu.Unlock()
}

func (s *Store) apply(cfg logic.Config) {
	s.set(KeyBlockInterval, clampDuration(cfg.TimeThreshold).Seconds())
	s.set(KeyDirectionChangeThreshold, clampCount(cfg.DirectionChangeCount))
	s.set(KeyEnabled, cfg.Enabled)
}

// Save applies cfg and commits it in one step.
func (s *Store) Save(cfg logic.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(cfg)
	return s.commit()
}

// Commit writes file values and setters to disk; environment overrides are
// not persisted. The file is replaced in one rename, so readers never see
// it half written. Afterwards the store holds what a fresh Open would, so
// an active environment override still wins over a committed value.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit()
}

func (s *Store) commit() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create settings temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	werr := s.disk.WriteConfigTo(f)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write settings %q: %w", s.path, werr)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("chmod settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace settings %q: %w", s.path, err)
	}

	v, disk, err := load(s.path)
	if err != nil {
		return err
	}
	s.v, s.disk = v, disk
	s.onDisk = configOf(s.v)
	return nil
}

// Reread loads the file again and reports whether the tunables differ from
// what was last read or committed. Only a changed file replaces the store's
// values; otherwise unsaved setters survive.
func (s *Store) Reread() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, disk, err := load(s.path)
	if err != nil {
		return false, err
	}
	cfg := configOf(v)
	if cfg == s.onDisk {
		return false, nil
	}
	s.v, s.disk = v, disk
	s.onDisk = cfg
	return true, nil
}

// Validate rejects a config outside the accepted ranges.
func Validate(cfg logic.Config) error {
	if cfg.TimeThreshold < MinTimeThreshold || cfg.TimeThreshold > MaxTimeThreshold {
		return fmt.Errorf("time threshold %v out of range [%v, %v]", cfg.TimeThreshold, MinTimeThreshold, MaxTimeThreshold)
	}
	if cfg.DirectionChangeCount < MinDirectionChangeCount || cfg.DirectionChangeCount > MaxDirectionChangeCount {
		return fmt.Errorf("direction change count %d out of range [%d, %d]", cfg.DirectionChangeCount, MinDirectionChangeCount, MaxDirectionChangeCount)
	}
	return nil
}

func clampDuration(d time.Duration) time.Duration {
	switch {
	case d < MinTimeThreshold:
		return MinTimeThreshold
	case d > MaxTimeThreshold:
		return MaxTimeThreshold
	}
	return d
}

func clampCount(n int) int {
	switch {
	case n < MinDirectionChangeCount:
		return MinDirectionChangeCount
	case n > MaxDirectionChangeCount:
		return MaxDirectionChangeCount
	}
	return n
}
