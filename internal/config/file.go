package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aristath/posenv/internal/cache"
	"github.com/aristath/posenv/internal/orchestrator"
	"github.com/aristath/posenv/internal/validation"
	"github.com/aristath/posenv/internal/warmup"
)

// FileConfig is the structured part of the configuration, read from YAML.
type FileConfig struct {
	DefaultTimeoutSeconds float64                  `yaml:"default_timeout_seconds"`
	Sections              map[string]SectionConfig `yaml:"sections"`
	Warmup                []WarmupJobConfig        `yaml:"warmup"`
}

// SectionConfig overrides freshness and time budget for one section.
type SectionConfig struct {
	TTLSeconds     float64 `yaml:"ttl_seconds"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// WarmupJobConfig is one warmup job as written in the settings file.
type WarmupJobConfig struct {
	Name          string                    `yaml:"name"`
	EnvDate       string                    `yaml:"env_date"`
	PosDate       string                    `yaml:"pos_date"`
	Books         []string                  `yaml:"books"`
	TimeOfDay     string                    `yaml:"time_of_day"`
	Section       string                    `yaml:"section"`
	SectionParams map[string]map[string]any `yaml:"section_params"`
	Schedule      ScheduleConfig            `yaml:"schedule"`
}

// ScheduleConfig is a job's daily window and refresh interval.
type ScheduleConfig struct {
	StartTime       string  `yaml:"start_time"`
	EndTime         string  `yaml:"end_time"`
	IntervalSeconds float64 `yaml:"interval_seconds"`
}

// LoadFile reads the settings file. A missing file yields empty settings and
// found=false.
func LoadFile(path string) (*FileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &FileConfig{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read settings file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, true, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return &fc, true, nil
}

// Validate checks structural settings: TTLs, timeouts, windows and intervals.
func (fc *FileConfig) Validate() error {
	if fc.DefaultTimeoutSeconds < 0 {
		return fmt.Errorf("default_timeout_seconds must not be negative")
	}
	for name, sc := range fc.Sections {
		if sc.TTLSeconds < 0 {
			return fmt.Errorf("section %s: ttl_seconds must not be negative", name)
		}
		if sc.TimeoutSeconds < 0 {
			return fmt.Errorf("section %s: timeout_seconds must not be negative", name)
		}
	}

	seen := make(map[string]bool, len(fc.Warmup))
	for i, job := range fc.Warmup {
		if job.Name == "" {
			return fmt.Errorf("warmup job %d: name is required", i)
		}
		if seen[job.Name] {
			return fmt.Errorf("warmup job %s: duplicate name", job.Name)
		}
		seen[job.Name] = true

		if _, err := warmup.ParseWindow(job.Schedule.StartTime, job.Schedule.EndTime); err != nil {
			return fmt.Errorf("warmup job %s: %w", job.Name, err)
		}
		if job.Schedule.IntervalSeconds <= 0 {
			return fmt.Errorf("warmup job %s: interval_seconds must be positive", job.Name)
		}
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// TTLPolicy returns section TTLs: built-in defaults overlaid with the file.
func (c *Config) TTLPolicy() cache.TTLPolicy {
	policy := cache.DefaultTTLPolicy()
	policy.Default = c.CacheDefaultTTL
	if c.Settings == nil {
		return policy
	}
	for name, sc := range c.Settings.Sections {
		if sc.TTLSeconds > 0 {
			policy.Sections[name] = seconds(sc.TTLSeconds)
		}
	}
	return policy
}

// OrchestratorConfig returns per-section timeout budgets.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	oc := orchestrator.Config{
		DefaultTimeout: orchestrator.DefaultTimeout,
		Timeouts:       make(map[string]time.Duration),
	}
	if c.Settings == nil {
		return oc
	}
	if c.Settings.DefaultTimeoutSeconds > 0 {
		oc.DefaultTimeout = seconds(c.Settings.DefaultTimeoutSeconds)
	}
	for name, sc := range c.Settings.Sections {
		if sc.TimeoutSeconds > 0 {
			oc.Timeouts[name] = seconds(sc.TimeoutSeconds)
		}
	}
	return oc
}

// WarmupJobs converts the configured jobs. Structural errors are reported;
// parameter errors are left for each job to surface at startup.
func (c *Config) WarmupJobs() ([]warmup.Job, error) {
	if c.Settings == nil {
		return nil, nil
	}

	jobs := make([]warmup.Job, 0, len(c.Settings.Warmup))
	for _, jc := range c.Settings.Warmup {
		window, err := warmup.ParseWindow(jc.Schedule.StartTime, jc.Schedule.EndTime)
		if err != nil {
			return nil, fmt.Errorf("warmup job %s: %w", jc.Name, err)
		}

		section := jc.Section
		if section == "" {
			section = "all"
		}

		body := validation.Body{
			Section:   section,
			TimeOfDay: jc.TimeOfDay,
			Books:     validation.Books(jc.Books),
			PosDate:   jc.PosDate,
			EnvDate:   jc.EnvDate,
		}
		if len(jc.SectionParams) > 0 {
			body.SectionParams = make(map[string]json.RawMessage, len(jc.SectionParams))
			for name, params := range jc.SectionParams {
				raw, err := json.Marshal(params)
				if err != nil {
					return nil, fmt.Errorf("warmup job %s: section_params.%s: %w", jc.Name, name, err)
				}
				body.SectionParams[name] = raw
			}
		}

		jobs = append(jobs, warmup.Job{
			Name:     jc.Name,
			Body:     body,
			Window:   window,
			Interval: seconds(jc.Schedule.IntervalSeconds),
		})
	}
	return jobs, nil
}
