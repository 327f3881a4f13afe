// Package logging provides categorized file-based logging for surveyor.
// Logs are written to <workspace>/.surveyor/logs/ with separate files per
// category. Logging is a silent no-op unless debug mode is enabled.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system.
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config resolution
	CategoryWorkflow Category = "workflow" // Cache sweep, dispatch, answer assembly
	CategoryStorage  Category = "storage"  // Cache backend operations
	CategoryAPI      Category = "api"      // Remote query calls and retries
	CategoryExport   Category = "export"   // CSV/JSON export
	CategoryUsage    Category = "usage"    // Token accounting
)

// Settings controls whether and how category logs are written. It
// mirrors config.LoggingConfig so this package does not import config.
type Settings struct {
	Debug      bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// StructuredLogEntry is the JSON form of one log line.
type StructuredLogEntry struct {
	Timestamp int64          `json:"ts"`
	Category  string         `json:"cat"`
	Level     string         `json:"lvl"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	settings  Settings
	setMu     sync.RWMutex
	logLevel  int
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory for the given workspace.
// Should be called once at startup, after config is loaded. With
// Debug false this is a no-op and every logger stays silent.
func Initialize(workspace string, s Settings) error {
	setMu.Lock()
	settings = s
	switch s.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	setMu.Unlock()

	if !s.Debug {
		return nil
	}
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}
	logsDir = filepath.Join(workspace, ".surveyor", "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== surveyor logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", s.Level)
	return nil
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	setMu.RLock()
	defer setMu.RUnlock()
	if !settings.Debug {
		return false
	}
	if settings.Categories == nil {
		return true
	}
	enabled, exists := settings.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category. Returns a
// no-op logger when debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date-prefixed files for easy rotation.
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

func (l *Logger) write(level int, tag, format string, args ...any) {
	if l.logger == nil || logLevel > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	setMu.RLock()
	jsonFormat := settings.JSONFormat
	setMu.RUnlock()
	if jsonFormat {
		l.logJSON(tag, msg)
	} else {
		l.logger.Printf("[%s] %s", tag, msg)
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) { l.write(LevelDebug, "DEBUG", format, args...) }

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) { l.write(LevelInfo, "INFO", format, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) { l.write(LevelWarn, "WARN", format, args...) }

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) { l.write(LevelError, "ERROR", format, args...) }

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category.
func Boot(format string, args ...any) { Get(CategoryBoot).Info(format, args...) }

// BootError logs an error to the boot category.
func BootError(format string, args ...any) { Get(CategoryBoot).Error(format, args...) }

// Workflow logs to the workflow category.
func Workflow(format string, args ...any) { Get(CategoryWorkflow).Info(format, args...) }

// WorkflowDebug logs debug to the workflow category.
func WorkflowDebug(format string, args ...any) { Get(CategoryWorkflow).Debug(format, args...) }

// WorkflowError logs an error to the workflow category.
func WorkflowError(format string, args ...any) { Get(CategoryWorkflow).Error(format, args...) }

// Storage logs to the storage category.
func Storage(format string, args ...any) { Get(CategoryStorage).Info(format, args...) }

// StorageDebug logs debug to the storage category.
func StorageDebug(format string, args ...any) { Get(CategoryStorage).Debug(format, args...) }

// StorageError logs an error to the storage category.
func StorageError(format string, args ...any) { Get(CategoryStorage).Error(format, args...) }

// API logs to the api category.
func API(format string, args ...any) { Get(CategoryAPI).Info(format, args...) }

// APIDebug logs debug to the api category.
func APIDebug(format string, args ...any) { Get(CategoryAPI).Debug(format, args...) }

// APIWarn logs a warning to the api category.
func APIWarn(format string, args ...any) { Get(CategoryAPI).Warn(format, args...) }

// APIError logs an error to the api category.
func APIError(format string, args ...any) { Get(CategoryAPI).Error(format, args...) }

// Export logs to the export category.
func Export(format string, args ...any) { Get(CategoryExport).Info(format, args...) }

// Usage logs to the usage category.
func Usage(format string, args ...any) { Get(CategoryUsage).Info(format, args...) }

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level.
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}
