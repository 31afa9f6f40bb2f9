package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/de-tools/market-pulse/pkg/models/domain"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a schedule update is rejected.
var ErrInvalidConfig = errors.New("invalid schedule config")

// Store owns the mutable schedule configuration for one deployment
// environment. The value is kept in <dir>/<env>.json so it survives a
// process restart.
type Store struct {
	path string
	env  string

	mu  sync.RWMutex
	cfg domain.ScheduleConfig
}

// NewStore loads the schedule config for env from dir, writing the
// default schedule on first use.
func NewStore(dir, env string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config dir %s: %w", dir, err)
	}

	s := &Store{
		path: filepath.Join(dir, env+".json"),
		env:  env,
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		s.cfg = domain.ScheduleConfig{Times: append([]string(nil), domain.DefaultScheduleTimes...)}
		if err := s.persist(s.cfg); err != nil {
			return nil, err
		}
		return s, nil
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read schedule config: %w", err)
	}
	var cfg domain.ScheduleConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse schedule config: %w", err)
	}

	times, err := normalizeTimes(cfg.Times)
	if err != nil {
		return nil, fmt.Errorf("schedule config %s: %w", s.path, err)
	}
	s.cfg = domain.ScheduleConfig{Times: times}
	return s, nil
}

// Env returns the deployment environment this store was loaded for.
func (s *Store) Env() string {
	return s.env
}

// Get returns the current schedule config.
func (s *Store) Get() domain.ScheduleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ScheduleConfig{Times: append([]string(nil), s.cfg.Times...)}
}

// Update validates, normalizes and persists a new schedule, returning
// the accepted value. Times must be well-formed HH:MM and the list must
// not be empty; duplicates collapse and the result is ascending.
func (s *Store) Update(times []string) (domain.ScheduleConfig, error) {
	normalized, err := normalizeTimes(times)
	if err != nil {
		return domain.ScheduleConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := domain.ScheduleConfig{Times: normalized}
	if err := s.persist(cfg); err != nil {
		return domain.ScheduleConfig{}, err
	}
	s.cfg = cfg
	return cfg, nil
}

func (s *Store) persist(cfg domain.ScheduleConfig) error {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.Set("schedule_times", cfg.Times)
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to persist schedule config: %w", err)
	}
	return nil
}

func normalizeTimes(times []string) ([]string, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: schedule_times must not be empty", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(times))
	out := make([]string, 0, len(times))
	for _, t := range times {
		parsed, err := time.Parse("15:04", t)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a valid HH:MM time", ErrInvalidConfig, t)
		}
		canonical := parsed.Format("15:04")
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out, nil
}
