// Package logging writes run-scoped diagnostic logs. Every component of a
// run appends to the same file, ~/.portalrunner/logs/<run-id>.log, so one
// file tells the story of one run.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level filters what reaches the log file.
type Level int

const (
	// LevelQuiet keeps warnings and errors only
	LevelQuiet Level = iota
	// LevelNormal adds run and item milestones (default)
	LevelNormal
	// LevelVerbose adds per-step detail
	LevelVerbose
	// LevelDebug adds every browser interaction
	LevelDebug
)

// ParseLevel maps a verbosity name to a Level. The empty string is normal.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "quiet":
		return LevelQuiet, nil
	case "", "normal":
		return LevelNormal, nil
	case "verbose":
		return LevelVerbose, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelNormal, fmt.Errorf("invalid verbosity %q (must be quiet, normal, verbose or debug)", s)
	}
}

// Logger is a component logger sharing the run's log file.
type Logger struct {
	runID     string
	component string
	file      *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logPath   string
	closeOnce sync.Once
}

var (
	runID     string
	runIDOnce sync.Once

	// logDir overrides the default directory when set before first use
	logDir   string
	initOnce sync.Once
	initErr  error

	levelMu sync.RWMutex
	level   = LevelNormal
)

// RunID returns the id of this run, creating it on first use.
func RunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// SetDirectory places log files in dir instead of ~/.portalrunner/logs.
// It has no effect once a logger was created.
func SetDirectory(dir string) {
	logDir = dir
}

// SetLevel changes the level for every logger.
func SetLevel(l Level) {
	levelMu.Lock()
	level = l
	levelMu.Unlock()
}

func enabled(l Level) bool {
	levelMu.RLock()
	defer levelMu.RUnlock()
	return level >= l
}

func initLogDirectory() error {
	initOnce.Do(func() {
		if logDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				initErr = fmt.Errorf("failed to get home directory: %w", err)
				return
			}
			logDir = filepath.Join(homeDir, ".portalrunner", "logs")
		}
		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
		}
	})
	return initErr
}

// NewLogger creates a logger for component. When the log file cannot be
// opened it returns a stderr logger together with the error, so callers can
// warn and carry on.
func NewLogger(component string) (*Logger, error) {
	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	id := RunID()
	logPath := filepath.Join(logDir, id+".log")

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return newFallbackLogger(component, err), err
	}

	return &Logger{
		runID:     id,
		component: component,
		file:      file,
		logger:    log.New(file, "", 0),
		logPath:   logPath,
	}, nil
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *Logger {
	return &Logger{component: "discard", logger: log.New(io.Discard, "", 0)}
}

func newFallbackLogger(component string, err error) *Logger {
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags)
	logger.Printf("WARNING: file logging unavailable: %v", err)

	return &Logger{
		runID:     RunID(),
		component: component,
		logger:    logger,
	}
}

// With returns a logger for a sub-component writing to the same file.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		runID:     l.runID,
		component: l.component + "/" + component,
		logger:    l.logger,
		logPath:   l.logPath,
	}
}

func (l *Logger) write(lvl Level, tag, format string, v ...interface{}) {
	if !enabled(lvl) {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	entry := fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, tag, fmt.Sprintf(format, v...))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Println(entry)
}

// Tracef logs browser-level detail (debug verbosity).
func (l *Logger) Tracef(format string, v ...interface{}) {
	l.write(LevelDebug, "TRACE", format, v...)
}

// Debugf logs per-step detail (verbose verbosity).
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write(LevelVerbose, "DEBUG", format, v...)
}

// Infof logs a milestone.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write(LevelNormal, "INFO", format, v...)
}

// Warnf logs a recoverable problem.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write(LevelQuiet, "WARN", format, v...)
}

// Errorf logs a failure.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write(LevelQuiet, "ERROR", format, v...)
}

// RunID returns the run id this logger writes under.
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the log file path, or "" for stderr and discard loggers.
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file. Safe to call more than once. Loggers made by
// With share the parent's file and do not close it.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
