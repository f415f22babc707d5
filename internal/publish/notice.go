package publish

import (
	"context"
	"log/slog"
	"time"
)

// NoticeDuration is how long a user-facing notice should stay visible.
const NoticeDuration = 5 * time.Second

// Level classifies notices.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice is a short user-facing status message.
type Notice struct {
	Level    Level         `json:"level"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

// Notifier delivers notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lvl := slog.LevelInfo
	switch n.Level {
	case LevelWarn:
		lvl = slog.LevelWarn
	case LevelError:
		lvl = slog.LevelError
	}
	logger.Log(context.Background(), lvl, "notice: "+n.Message)
}

// MultiNotifier fans a notice out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(n)
		}
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(Notice) {}

func notice(level Level, msg string) Notice {
	return Notice{Level: level, Message: msg, Duration: NoticeDuration}
}
