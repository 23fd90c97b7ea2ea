// SPDX-License-Identifier: MIT

package mtpz

import (
	"log/slog"
	"os"
	"sync"

	"hermannm.dev/devlog"
)

var (
	logMu    sync.Mutex
	logLevel slog.LevelVar
	logger   = slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{Level: &logLevel}))
)

// SetLogger overrides the package-level logger used to report handshake
// progress and failures. Callers embedding this module into a larger
// application can redirect it to their own slog.Logger; by default it
// prints to stdout via devlog's console-pretty handler.
func SetLogger(l *slog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = l
}

func currentLogger() *slog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	return logger
}
