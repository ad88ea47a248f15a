// Package logger builds the process-wide slog logger on a zap core.
package logger

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger writing to stdout at the given level
// (debug, info, warn, error). The returned zap logger must be synced on exit.
func New(level string) (*slog.Logger, *zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), lvl)
	base := zap.New(core)

	return slog.New(zapslog.NewHandler(core, zapslog.WithCaller(true))), base, nil
}
