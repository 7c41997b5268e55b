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
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const sessionLogPrefix = "nfcmanager_"

// sessionLog is an open log file that receives every debug record.
type sessionLog struct {
	file *os.File
	path string
}

// activeSession is guarded by logMu.
var activeSession *sessionLog

// InitSessionLog opens nfcmanager_<timestamp>.log in dir, or the working
// directory when dir is empty, and sends all log records to it. An already
// open session log is closed first. Returns the path of the new file.
func InitSessionLog(dir string) (string, error) {
	path := filepath.Join(dir, sessionLogPrefix+time.Now().Format("20060102_150405")+".log")
	file, err := os.Create(path) //nolint:gosec // path is built from a fixed prefix
	if err != nil {
		return "", fmt.Errorf("create session log: %w", err)
	}
	writeSessionBanner(file)

	logMu.Lock()
	prev := activeSession
	activeSession = &sessionLog{file: file, path: path}
	sessionOut = file
	rebuildLogger()
	logMu.Unlock()

	if prev != nil {
		if err := prev.close(); err != nil {
			return path, err
		}
	}
	return path, nil
}

// CloseSessionLog stops writing to the session log and closes it.
func CloseSessionLog() error {
	logMu.Lock()
	s := activeSession
	activeSession = nil
	sessionOut = nil
	rebuildLogger()
	logMu.Unlock()

	if s == nil {
		return nil
	}
	return s.close()
}

// GetSessionLogPath returns the open session log's path, or "".
func GetSessionLogPath() string {
	logMu.RLock()
	defer logMu.RUnlock()
	if activeSession == nil {
		return ""
	}
	return activeSession.path
}

func (s *sessionLog) close() error {
	_, _ = fmt.Fprintf(s.file, "\n%s session closed\n", time.Now().Format("15:04:05.000"))
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close session log %s: %w", s.path, err)
	}
	return nil
}

func writeSessionBanner(f *os.File) {
	fields := [][2]string{
		{"started", time.Now().Format(time.RFC3339)},
		{"pid", fmt.Sprint(os.Getpid())},
		{"platform", runtime.GOOS + "/" + runtime.GOARCH},
		{"go", runtime.Version()},
		{"args", strings.Join(os.Args, " ")},
	}
	var b strings.Builder
	b.WriteString("nfcmanager session log\n")
	for _, kv := range fields {
		_, _ = fmt.Fprintf(&b, "  %-9s%s\n", kv[0], kv[1])
	}
	b.WriteString("\n")
	_, _ = f.WriteString(b.String())
}
