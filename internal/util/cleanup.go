package util

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// Logf is the printf-style sink used for cleanup messages.
type Logf func(format string, args ...any)

// InterruptContext returns a context cancelled on SIGINT/SIGTERM. On a
// signal, unfinished temp folders under outputDir are removed as well.
func InterruptContext(parent context.Context, outputDir string, logf Logf) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sig)

		select {
		case <-sig:
			logf("Interrupt received. Cleaning up...")
			cancel()
			CleanupUnfinishedTempFolders(outputDir, logf)
			RemoveIfEmpty(outputDir, logf)
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func CleanupUnfinishedTempFolders(outputDir string, logf Logf) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() && strings.HasSuffix(name, "_tmp") {
			full := filepath.Join(outputDir, name)

			if err := os.RemoveAll(full); err != nil {
				logf("Error cleaning up %s: %v", full, err)
			} else {
				logf("Removed %s", full)
			}
		}
	}
}

func RemoveIfEmpty(dir string, logf Logf) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err == nil {
			logf("Removed empty output folder: %s", dir)
		}
	}
}

func CleanupFolder(folder string) {
	_ = os.RemoveAll(folder)
}
