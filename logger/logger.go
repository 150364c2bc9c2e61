// Package logger provides the diagnostic stream for a ring run: a
// severity-tagged logger writing to multiple outputs. Init must be called
// early in the application lifecycle; AddOutput and SetEnabled return errors
// if called before Init.
//
// The stream is purely observational. Nothing in the protocol reads it.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Level is the diagnostic severity.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelCritical
)

var levelTags = map[Level]string{
	LevelInfo:     "INFO",
	LevelWarning:  "WARN",
	LevelCritical: "CRIT",
}

var levelStyles = map[Level]lipgloss.Style{
	LevelInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	LevelWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	LevelCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

// Logger is a configurable logger that can write to multiple outputs.
type Logger struct {
	mu      sync.Mutex
	outputs []io.Writer
	enabled bool
}

var (
	globalLogger *Logger
	once         sync.Once
	globalBuffer *LogBuffer
	bufferOnce   sync.Once
)

// GetGlobalLogBuffer returns the global log buffer used by the TUI.
func GetGlobalLogBuffer() *LogBuffer {
	bufferOnce.Do(func() {
		globalBuffer = NewLogBuffer(1000) // keep last 1000 entries
	})
	return globalBuffer
}

// Init initializes the global logger.
func Init(writeToStderr bool) {
	once.Do(func() {
		outputs := []io.Writer{}
		if writeToStderr {
			outputs = append(outputs, os.Stderr)
		}
		globalLogger = &Logger{
			outputs: outputs,
			enabled: true,
		}
	})
}

// AddOutput adds an additional output writer (e.g., the TUI log buffer).
// Returns an error if called before Init.
func AddOutput(w io.Writer) error {
	if globalLogger == nil {
		return errors.New("logger not initialized: call logger.Init() first")
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.outputs = append(globalLogger.outputs, w)
	return nil
}

// RemoveOutput removes an output writer.
// Returns an error if called before Init.
func RemoveOutput(w io.Writer) error {
	if globalLogger == nil {
		return errors.New("logger not initialized: call logger.Init() first")
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	newOutputs := []io.Writer{}
	for _, output := range globalLogger.outputs {
		if output != w {
			newOutputs = append(newOutputs, output)
		}
	}
	globalLogger.outputs = newOutputs
	return nil
}

// SetEnabled enables or disables logging.
// Returns an error if called before Init.
func SetEnabled(enabled bool) error {
	if globalLogger == nil {
		return errors.New("logger not initialized: call logger.Init() first")
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.enabled = enabled
	return nil
}

// Logf logs a formatted message at the given severity.
func Logf(level Level, format string, v ...interface{}) {
	if globalLogger == nil {
		// Fallback to standard log if not initialized
		log.Printf("["+levelTags[level]+"] "+format, v...)
		return
	}

	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	if !globalLogger.enabled {
		return
	}

	msg := fmt.Sprintf(format, v...)
	msg = strings.TrimSuffix(msg, "\n")
	msg = levelStyles[level].Render(levelTags[level]) + " " + msg

	if len(globalLogger.outputs) > 0 {
		line := msg + "\n"
		for _, output := range globalLogger.outputs {
			output.Write([]byte(line))
		}
	}
}

// Infof logs an info-level formatted message.
func Infof(format string, v ...interface{}) {
	Logf(LevelInfo, format, v...)
}

// Warningf logs a warning-level formatted message.
func Warningf(format string, v ...interface{}) {
	Logf(LevelWarning, format, v...)
}

// Criticalf logs a critical-level formatted message.
func Criticalf(format string, v ...interface{}) {
	Logf(LevelCritical, format, v...)
}

// GetGlobalLogger returns the global logger instance (for testing/debugging).
func GetGlobalLogger() *Logger {
	return globalLogger
}
