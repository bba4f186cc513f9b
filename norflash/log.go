package norflash

import (
	"context"
	"log/slog"
)

// LevelNoisy is used for per byte traces.
const LevelNoisy = slog.LevelDebug - 4

func (f *Flash) noisy(msg string, args ...any) {
	if !f.log.Enabled(context.Background(), LevelNoisy) {
		return
	}
	f.log.Log(context.Background(), LevelNoisy, msg, args...)
}

// Logger returns the device logger, for use by extensions.
func (f *Flash) Logger() *slog.Logger {
	return f.log
}
