// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nfcmanager

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// debugEnabled controls whether debug output reaches the console.
// It can be switched on with the NFCMANAGER_DEBUG or DEBUG environment variables.
var debugEnabled = false

var (
	logMu      sync.RWMutex
	logger     zerolog.Logger
	consoleOut io.Writer = os.Stderr
	sessionOut io.Writer
	customLog  bool
)

func init() {
	if os.Getenv("NFCMANAGER_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
	rebuildLogger()
}

// levelFilter drops records below min before they reach w.
type levelFilter struct {
	w   io.Writer
	min zerolog.Level
}

func (f levelFilter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f levelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.min {
		return len(p), nil
	}
	return f.w.Write(p)
}

// rebuildLogger assembles the package logger from the console and the
// session log file. The session file always receives debug records.
// Callers hold logMu or run during init.
func rebuildLogger() {
	if customLog {
		return
	}
	consoleLevel := zerolog.InfoLevel
	if debugEnabled {
		consoleLevel = zerolog.DebugLevel
	}
	writers := []io.Writer{levelFilter{
		w:   zerolog.ConsoleWriter{Out: consoleOut, TimeFormat: "15:04:05.000"},
		min: consoleLevel,
	}}
	if sessionOut != nil {
		writers = append(writers, levelFilter{w: sessionOut, min: zerolog.DebugLevel})
	}
	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(zerolog.DebugLevel).
		With().Timestamp().Str("component", "nfcmanager").Logger()
}

// Logger returns the package logger.
func Logger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// SetLogger replaces the package logger. The debug switch and session log
// no longer apply once an application logger is installed.
func SetLogger(l zerolog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = l
	customLog = true
}

// Debugf logs a formatted debug message.
// Always written to the session log file (if initialized); only printed to
// the console when debug mode is enabled.
func Debugf(format string, args ...any) {
	l := Logger()
	l.Debug().Msg(fmt.Sprintf(format, args...))
}

// Debugln logs its operands as a debug message, spaced like fmt.Println.
func Debugln(args ...any) {
	l := Logger()
	l.Debug().Msg(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// SetDebugEnabled allows programmatic control of debug logging.
func SetDebugEnabled(enabled bool) {
	logMu.Lock()
	defer logMu.Unlock()
	debugEnabled = enabled
	rebuildLogger()
}
