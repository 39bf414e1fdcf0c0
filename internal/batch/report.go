package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Status is the outcome of one form.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
)

// FormResult records what happened to one form.
type FormResult struct {
	ID        string        `yaml:"id" json:"id"`
	Source    string        `yaml:"source" json:"source"`
	Status    Status        `yaml:"status" json:"status"`
	Reason    string        `yaml:"reason,omitempty" json:"reason,omitempty"`
	Error     string        `yaml:"error,omitempty" json:"error,omitempty"`
	Lines     []int         `yaml:"lines,flow,omitempty" json:"lines,omitempty"`
	Estimated bool          `yaml:"estimated,omitempty" json:"estimated,omitempty"`
	Written   []string      `yaml:"written,omitempty" json:"written,omitempty"`
	Duration  time.Duration `yaml:"duration" json:"duration"`
}

// Summary describes a whole run.
type Summary struct {
	RunID      string         `yaml:"run_id" json:"run_id"`
	Mode       Mode           `yaml:"mode" json:"mode"`
	OutputDir  string         `yaml:"output_dir" json:"output_dir"`
	StartedAt  time.Time      `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time      `yaml:"finished_at" json:"finished_at"`
	Processed  int            `yaml:"processed" json:"processed"`
	Skipped    int            `yaml:"skipped" json:"skipped"`
	Estimated  int            `yaml:"estimated" json:"estimated"`
	Reasons    map[string]int `yaml:"reasons,omitempty" json:"reasons,omitempty"`
	Forms      []FormResult   `yaml:"forms" json:"forms"`
}

func (s *Summary) add(res FormResult) {
	s.Forms = append(s.Forms, res)
	switch res.Status {
	case StatusOK:
		s.Processed++
		if res.Estimated {
			s.Estimated++
		}
	case StatusSkipped:
		s.Skipped++
		if s.Reasons == nil {
			s.Reasons = make(map[string]int)
		}
		s.Reasons[res.Reason]++
	}
}

// Total returns the number of forms the run finished.
func (s *Summary) Total() int {
	return s.Processed + s.Skipped
}

// WriteReport writes the summary as YAML, creating parent directories.
func WriteReport(s *Summary, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadReport reads a summary written by WriteReport.
func ReadReport(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &s, nil
}
