// Package logger is the process-wide leveled logger for docstore. Level tags
// are colored unless color.NoColor is set, which fatih/color does when stdout
// is not a terminal.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

var levels = []struct {
	name  string
	color *color.Color
}{
	LevelDebug: {"debug", color.New(color.FgHiBlack)},
	LevelInfo:  {"info", color.New(color.FgCyan)},
	LevelWarn:  {"warn", color.New(color.FgYellow)},
	LevelError: {"error", color.New(color.FgRed)},
}

// Init sets the global level from its name, case-insensitively. Unknown names
// fall back to info.
func Init(l string) {
	s := strings.ToLower(strings.TrimSpace(l))
	if s == "warning" {
		s = "warn"
	}
	next := LevelInfo
	for i, lv := range levels {
		if lv.name == s {
			next = Level(i)
		}
	}
	mu.Lock()
	level = next
	mu.Unlock()
}

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	return levels[level].name
}

func logf(l Level, format string, v ...interface{}) {
	mu.RLock()
	enabled := l >= level
	mu.RUnlock()
	if !enabled {
		return
	}
	tag := "[" + strings.ToUpper(levels[l].name) + "]"
	if !color.NoColor {
		tag = levels[l].color.Sprint(tag)
	}
	logger.Print(time.Now().Format(time.RFC3339) + " " + tag + " " + fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...interface{}) { logf(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logf(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logf(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logf(LevelError, format, v...) }
