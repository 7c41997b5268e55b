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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	nfcmanager "github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/bridge"
	"github.com/ZaparooProject/go-nfcmanager/internal/virtualnfc"
	"github.com/ZaparooProject/go-nfcmanager/tagops"
)

type config struct {
	writeText   string
	listen      string
	mdnsName    string
	logDir      string
	tapInterval time.Duration
	readerMode  bool
	debug       bool
}

// Package-level flag variables
var (
	flagWriteText   string
	flagListen      string
	flagMDNSName    string
	flagLogDir      string
	flagTapInterval time.Duration
	flagReaderMode  bool
	flagDebug       bool
)

func init() {
	flag.StringVar(&flagWriteText, "write", "", "Text to write to the next presented tag (exits after write)")
	flag.StringVar(&flagListen, "listen", "", "Serve notifications over WebSocket on this address, e.g. :7497")
	flag.StringVar(&flagMDNSName, "mdns", "", "Advertise the WebSocket bridge over mDNS with this instance name")
	flag.StringVar(&flagLogDir, "log-dir", "", "Write a session log to this directory when debugging")
	flag.DurationVar(&flagTapInterval, "tap-every", 2*time.Second, "Interval between simulated tag taps")
	flag.BoolVar(&flagReaderMode, "reader-mode", false, "Use reader mode instead of foreground dispatch")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func parseConfig() *config {
	cfg := &config{
		writeText:   flagWriteText,
		listen:      flagListen,
		mdnsName:    flagMDNSName,
		logDir:      flagLogDir,
		tapInterval: flagTapInterval,
		readerMode:  flagReaderMode,
		debug:       flagDebug,
	}

	if cfg.debug {
		nfcmanager.SetDebugEnabled(true)
	}

	return cfg
}

// demoTags are presented in turn by the simulated field.
func demoTags() []*virtualnfc.Tag {
	ntag := virtualnfc.NewNTAG213(nil)
	_ = ntag.SetNDEFText("**launch.system:snes")
	return []*virtualnfc.Tag{
		ntag,
		virtualnfc.NewMifare1K(nil),
		virtualnfc.NewIsoDep(nil),
		virtualnfc.NewBlankNTAG213([]byte{0x04, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60}),
	}
}

func newManager(ctx context.Context, cfg *config) (*nfcmanager.Manager, *virtualnfc.Platform, error) {
	platform := virtualnfc.New(nfcmanager.Logger())
	mgr := nfcmanager.New(platform, nil)
	if err := mgr.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start manager: %w", err)
	}
	opts := nfcmanager.RegisterOptions{ReaderModeEnabled: cfg.readerMode}
	if err := mgr.RegisterTagEvent(opts); err != nil {
		_ = mgr.Close()
		return nil, nil, fmt.Errorf("failed to register for tag events: %w", err)
	}
	if cfg.debug {
		_, _ = fmt.Printf("Dispatch mode: %s\n", mgr.DispatchMode())
	}
	return mgr, platform, nil
}

func printEvent(event nfcmanager.Event) {
	switch event.Name {
	case nfcmanager.EventStateChanged:
		_, _ = fmt.Printf("Radio state: %s\n", event.State)
	case nfcmanager.EventDiscoverTag, nfcmanager.EventDiscoverBackgroundTag:
		tag := event.Tag
		_, _ = fmt.Printf("Tag detected: UID=%s Techs=%v\n", tag.ID, tag.TechTypes)
		if tag.HasNdef() {
			_, _ = fmt.Printf("  NDEF %s, %d records, max %d bytes, writable=%t\n",
				tag.Type, len(tag.NdefMessage), tag.MaxSize, tag.IsWritable)
		}
	}
}

// simulateTaps presents the demo tags one after another until ctx ends.
func simulateTaps(ctx context.Context, platform *virtualnfc.Platform, interval time.Duration) {
	tags := demoTags()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		platform.Tap(tags[i%len(tags)])
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			platform.Remove()
		}
	}
}

func serveBridge(ctx context.Context, mgr *nfcmanager.Manager, cfg *config) error {
	ln, err := net.Listen("tcp", cfg.listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.listen, err)
	}
	srv := bridge.NewServer(mgr, nfcmanager.Logger())
	httpServer := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go srv.Run(ctx)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_, _ = fmt.Fprintf(os.Stderr, "Bridge server error: %v\n", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	_, _ = fmt.Printf("Bridge listening on %s\n", ln.Addr())

	if cfg.mdnsName != "" {
		_, portStr, err := net.SplitHostPort(ln.Addr().String())
		if err != nil {
			return fmt.Errorf("failed to read bridge port: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("failed to read bridge port: %w", err)
		}
		mdns, err := bridge.Advertise(cfg.mdnsName, port)
		if err != nil {
			return err
		}
		go func() {
			<-ctx.Done()
			mdns.Shutdown()
		}()
		_, _ = fmt.Printf("Advertised %q as %s\n", cfg.mdnsName, bridge.ServiceType)
	}
	return nil
}

func runReadMode(ctx context.Context, mgr *nfcmanager.Manager, platform *virtualnfc.Platform, cfg *config) error {
	events, unsubscribe := mgr.Events().Channel(16)
	defer unsubscribe()

	if cfg.listen != "" {
		if err := serveBridge(ctx, mgr, cfg); err != nil {
			return err
		}
	}

	_, _ = fmt.Println("Starting continuous tag monitoring. Press Ctrl+C to stop...")
	go simulateTaps(ctx, platform, cfg.tapInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-events:
			printEvent(event)
		}
	}
}

func runWriteMode(ctx context.Context, mgr *nfcmanager.Manager, platform *virtualnfc.Platform, cfg *config) error {
	if cfg.writeText == "" {
		return errors.New("writeText cannot be empty for write mode")
	}

	_, _ = fmt.Printf("Waiting for tag to write text: %q\n", cfg.writeText)
	tag := virtualnfc.NewNTAG213(nil)
	go func() {
		for !mgr.HasPendingRequest() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
		platform.Tap(tag)
	}()

	writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := tagops.New(mgr, nil).WriteText(writeCtx, cfg.writeText); err != nil {
		if errors.Is(err, context.Canceled) {
			_, _ = fmt.Println("Write operation cancelled.")
		}
		return fmt.Errorf("write operation failed: %w", err)
	}

	text, err := tag.NDEFText()
	if err != nil {
		return fmt.Errorf("failed to verify write: %w", err)
	}
	_, _ = fmt.Printf("Successfully wrote text to tag %s: %q\n", nfcmanager.UIDHex(tag.UID()), text)
	return nil
}

func run(ctx context.Context, cfg *config) error {
	if cfg.debug && cfg.logDir != "" {
		path, err := nfcmanager.InitSessionLog(cfg.logDir)
		if err != nil {
			return fmt.Errorf("failed to create session log: %w", err)
		}
		_, _ = fmt.Printf("Session log: %s\n", path)
		defer func() { _ = nfcmanager.CloseSessionLog() }()
	}

	mgr, platform, err := newManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close manager: %v\n", err)
		}
	}()

	if cfg.writeText != "" {
		return runWriteMode(ctx, mgr, platform, cfg)
	}
	return runReadMode(ctx, mgr, platform, cfg)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
