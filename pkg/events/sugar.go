package events

import (
	"context"
	"fmt"
	"time"
)

// Info emits a plain informational notification
func (h *Hub) Info(ctx context.Context, message string) (*Event, error) {
	return h.Emit(ctx, EventNotification, message, &EmitOptions{Level: LevelInfo})
}

// Warn emits a warning notification
func (h *Hub) Warn(ctx context.Context, message string) (*Event, error) {
	return h.Emit(ctx, EventNotification, message, &EmitOptions{Level: LevelWarn})
}

// Error emits an error notification carrying err
func (h *Hub) Error(ctx context.Context, message string, err error) (*Event, error) {
	return h.Emit(ctx, EventNotification, message, &EmitOptions{Level: LevelError, Error: err})
}

// Critical emits a critical notification carrying err
func (h *Hub) Critical(ctx context.Context, message string, err error) (*Event, error) {
	return h.Emit(ctx, EventNotification, message, &EmitOptions{Level: LevelCritical, Error: err})
}

// ServiceStarted emits the service lifecycle start event
func (h *Hub) ServiceStarted(ctx context.Context, name, version string) (*Event, error) {
	return h.Emit(ctx, EventServiceStarted, fmt.Sprintf("service %s started", name), &EmitOptions{
		Source: name,
		Data:   map[string]interface{}{"version": version},
	})
}

// ServiceStopped emits the service lifecycle stop event with uptime
func (h *Hub) ServiceStopped(ctx context.Context, name string, uptime time.Duration) (*Event, error) {
	return h.Emit(ctx, EventServiceStopped, fmt.Sprintf("service %s stopped", name), &EmitOptions{
		Source: name,
		Data:   map[string]interface{}{"uptime": uptime.String()},
	})
}

// ServiceError emits a service-level error event
func (h *Hub) ServiceError(ctx context.Context, name string, err error) (*Event, error) {
	return h.Emit(ctx, EventServiceError, fmt.Sprintf("service %s error", name), &EmitOptions{
		Level:  LevelError,
		Source: name,
		Error:  err,
	})
}
