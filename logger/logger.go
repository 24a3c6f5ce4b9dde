package logger

import (
	"log/slog"
	"os"
	"strings"
)

// ParseLevel 解析日志级别，无法识别时返回 Info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger 创建 JSON 格式的日志记录器,输出到 stdout
func NewLogger(level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("service", "forecast-service")
}

// InitLogger 初始化全局日志记录器
func InitLogger(level string) *slog.Logger {
	logger := NewLogger(level)
	slog.SetDefault(logger)
	return logger
}

// OrDefault 组件未注入日志记录器时使用全局默认值
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
