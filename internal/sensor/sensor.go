package sensor

import (
	"errors"

	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
)

// ErrInvalidPayload is returned for sensor messages that cannot be decoded.
var ErrInvalidPayload = errors.New("sensor: invalid occupancy payload")

// OccupancyWriter is the engine surface sensors need. *automation.Engine
// satisfies it.
type OccupancyWriter interface {
	SetOccupancy(roomID int, occupied bool, source automation.Source) (facility.Room, error)
	Snapshot() facility.Snapshot
}

// Logger is satisfied by *slog.Logger and logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
