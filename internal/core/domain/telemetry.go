package domain

import "time"

type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Tag       string    `json:"tag"`
	Message   string    `json:"message"`
}

func (e LogEntry) String() string {
	return "[" + e.Timestamp.Format("15:04:05") + "] [" + e.Tag + "] " + e.Message
}
