// Package progress prints run progress and the final summary to the
// console, and writes the summary artifact next to the output workbook.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Level is the console verbosity.
type Level int

const (
	// LevelQuiet shows warnings, errors and the final summary
	LevelQuiet Level = iota
	// LevelNormal adds one line per item (default)
	LevelNormal
	// LevelVerbose adds step detail
	LevelVerbose
	// LevelDebug adds internal detail
	LevelDebug
)

// ParseLevel maps a verbosity name to a Level; unknown names are normal.
func ParseLevel(s string) Level {
	switch s {
	case "quiet":
		return LevelQuiet
	case "verbose":
		return LevelVerbose
	case "debug":
		return LevelDebug
	default:
		return LevelNormal
	}
}

var (
	salmonPink  = lipgloss.Color("#FFB3BA")
	mintGreen   = lipgloss.Color("#A8E6CF")
	amber       = lipgloss.Color("#FDE68A")
	mutedGray   = lipgloss.Color("#6B7280")
	brightWhite = lipgloss.Color("#F9FAFB")

	headerStyle  = lipgloss.NewStyle().Foreground(brightWhite).Bold(true)
	sectionStyle = lipgloss.NewStyle().Foreground(salmonPink).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(mintGreen).Bold(true)
	skipStyle    = lipgloss.NewStyle().Foreground(amber)
	failStyle    = lipgloss.NewStyle().Foreground(salmonPink).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(mutedGray)
)

// Status is how an item ended, as far as the console is concerned.
type Status int

const (
	Succeeded Status = iota
	Skipped
	Failed
)

// Reporter writes human-facing progress lines.
type Reporter struct {
	level  Level
	writer io.Writer
	rule   string
}

// NewReporter creates a reporter writing to stdout.
func NewReporter(level Level) *Reporter {
	return NewReporterTo(os.Stdout, level)
}

// NewReporterTo creates a reporter writing to w.
func NewReporterTo(w io.Writer, level Level) *Reporter {
	return &Reporter{level: level, writer: w, rule: strings.Repeat("=", 60)}
}

// Header prints a prominent banner.
func (r *Reporter) Header(message string) {
	if r.level >= LevelNormal {
		fmt.Fprintf(r.writer, "\n%s\n  %s\n%s\n", headerStyle.Render(r.rule), headerStyle.Render(message), headerStyle.Render(r.rule))
	}
}

// Section prints a section title.
func (r *Reporter) Section(title string) {
	if r.level >= LevelNormal {
		fmt.Fprintf(r.writer, "\n%s\n%s\n", sectionStyle.Render("▶ "+title), dimStyle.Render(strings.Repeat("─", 40)))
	}
}

// Successf prints a success line.
func (r *Reporter) Successf(format string, args ...interface{}) {
	if r.level >= LevelNormal {
		fmt.Fprintln(r.writer, okStyle.Render("✓ "+fmt.Sprintf(format, args...)))
	}
}

// Infof prints an informational line.
func (r *Reporter) Infof(format string, args ...interface{}) {
	if r.level >= LevelNormal {
		fmt.Fprintln(r.writer, fmt.Sprintf(format, args...))
	}
}

// Warningf prints a warning at every level.
func (r *Reporter) Warningf(format string, args ...interface{}) {
	fmt.Fprintln(r.writer, skipStyle.Render("⚠ Warning: "+fmt.Sprintf(format, args...)))
}

// Errorf prints an error at every level.
func (r *Reporter) Errorf(format string, args ...interface{}) {
	fmt.Fprintln(r.writer, failStyle.Render("✗ Error: "+fmt.Sprintf(format, args...)))
}

// Verbosef prints step detail in verbose mode.
func (r *Reporter) Verbosef(format string, args ...interface{}) {
	if r.level >= LevelVerbose {
		fmt.Fprintln(r.writer, dimStyle.Render("→ "+fmt.Sprintf(format, args...)))
	}
}

// Item prints the one-line result of item n.
func (r *Reporter) Item(n int, label string, status Status, detail string) {
	if r.level < LevelNormal {
		return
	}
	var mark string
	switch status {
	case Succeeded:
		mark = okStyle.Render("✓")
	case Skipped:
		mark = skipStyle.Render("–")
	default:
		mark = failStyle.Render("✗")
	}
	line := fmt.Sprintf("%s [%d] %s", mark, n, label)
	if detail != "" {
		line += dimStyle.Render(" → ") + detail
	}
	fmt.Fprintln(r.writer, line)
}

// Summary prints the final counts. It is shown at every level.
func (r *Reporter) Summary(s *Summary) {
	fmt.Fprintln(r.writer)
	fmt.Fprintln(r.writer, headerStyle.Render(r.rule))
	fmt.Fprintln(r.writer, headerStyle.Render("  RUN SUMMARY · "+s.Workflow))
	fmt.Fprintln(r.writer, headerStyle.Render(r.rule))

	fmt.Fprint(r.writer, "  Status: ")
	switch s.Status {
	case StatusCompleted:
		fmt.Fprintln(r.writer, okStyle.Render("✓ COMPLETED"))
	case StatusInterrupted:
		fmt.Fprintln(r.writer, skipStyle.Render("⚠ INTERRUPTED"))
	default:
		fmt.Fprintln(r.writer, failStyle.Render("✗ FAILED"))
	}

	fmt.Fprintf(r.writer, "  Duration: %s\n", s.Duration.Round(time.Second))
	fmt.Fprintf(r.writer, "  Succeeded: %d | Failed: %d | Skipped: %d\n", s.Succeeded, s.Failed, s.Skipped)
	for _, tag := range s.tagNames() {
		fmt.Fprintf(r.writer, "  %s: %d\n", capitalize(tag), s.Tags[tag])
	}
	if s.Output != "" {
		fmt.Fprintf(r.writer, "  Saved → %s (%d checkpoints)\n", s.Output, s.Checkpoints)
	}
	if s.Error != "" {
		fmt.Fprintln(r.writer, failStyle.Render("  Error: "+s.Error))
	}
	fmt.Fprintln(r.writer, headerStyle.Render(r.rule))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
