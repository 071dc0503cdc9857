package main

import (
	"context"
	"io"
	"log/slog"
	"os"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// dualHandler writes every record to the core handler and additionally
// copies error records to a separate sink.
type dualHandler struct {
	coreHandler  slog.Handler
	errorHandler slog.Handler
}

func (h *dualHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.coreHandler.Enabled(ctx, lvl) || h.errorHandler.Enabled(ctx, lvl)
}

func (h *dualHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.coreHandler.Enabled(ctx, r.Level) {
		if err := h.coreHandler.Handle(ctx, r); err != nil {
			return err
		}
	}

	if r.Level >= slog.LevelError && h.errorHandler.Enabled(ctx, r.Level) {
		// error file failures are ignored
		_ = h.errorHandler.Handle(ctx, r.Clone())
	}

	return nil
}

func (h *dualHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dualHandler{
		coreHandler:  h.coreHandler.WithAttrs(attrs),
		errorHandler: h.errorHandler.WithAttrs(attrs),
	}
}

func (h *dualHandler) WithGroup(name string) slog.Handler {
	return &dualHandler{
		coreHandler:  h.coreHandler.WithGroup(name),
		errorHandler: h.errorHandler.WithGroup(name),
	}
}

func newHandler(env string, out, errOut io.Writer) slog.Handler {
	level := slog.LevelDebug
	if env == envProd {
		level = slog.LevelInfo
	}

	var core slog.Handler
	switch env {
	case envDev, envProd:
		core = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	default:
		core = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}

	if errOut == nil {
		return core
	}

	return &dualHandler{
		coreHandler:  core,
		errorHandler: slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelError}),
	}
}

func setupLogger(env, errorFile string) *slog.Logger {
	if errorFile == "" {
		return slog.New(newHandler(env, os.Stdout, nil))
	}

	f, err := os.OpenFile(errorFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Warn("cannot open error log file", slog.String("path", errorFile), slog.String("error", err.Error()))
		return slog.New(newHandler(env, os.Stdout, nil))
	}

	return slog.New(newHandler(env, os.Stdout, f))
}
