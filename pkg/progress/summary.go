package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// Summary describes a finished run.
type Summary struct {
	RunID       string         `json:"run_id"`
	Workflow    string         `json:"workflow"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	Duration    time.Duration  `json:"duration"`
	Processed   int            `json:"processed"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	Skipped     int            `json:"skipped"`
	Tags        map[string]int `json:"tags,omitempty"`
	Checkpoints int            `json:"checkpoints"`
	Output      string         `json:"output"`
	LogPath     string         `json:"log_path,omitempty"`
}

// Count adds one item with status and tags.
func (s *Summary) Count(status Status, tags ...string) {
	s.Processed++
	switch status {
	case Succeeded:
		s.Succeeded++
	case Skipped:
		s.Skipped++
	default:
		s.Failed++
	}
	for _, t := range tags {
		if s.Tags == nil {
			s.Tags = make(map[string]int)
		}
		s.Tags[t]++
	}
}

func (s *Summary) tagNames() []string {
	names := make([]string, 0, len(s.Tags))
	for t := range s.Tags {
		names = append(names, t)
	}
	sort.Strings(names)
	return names
}

// WriteJSON writes s as indented JSON to path.
func WriteJSON(path string, s *Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}

// SummaryPath returns the summary artifact path for an output workbook:
// out.xlsx → out.summary.json.
func SummaryPath(output string) string {
	ext := filepath.Ext(output)
	return output[:len(output)-len(ext)] + ".summary.json"
}
