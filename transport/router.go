package transport

import (
	"context"
	"encoding/json"
	"log/slog"
)

// HandlerFunc handles one inbound frame for one connection.
type HandlerFunc func(ctx context.Context, conn *Conn, data json.RawMessage)

// Router dispatches inbound frames to their event handlers.
type Router struct {
	log      *slog.Logger
	handlers map[string]HandlerFunc
}

func NewRouter(log *slog.Logger) *Router {
	return &Router{log: log, handlers: make(map[string]HandlerFunc)}
}

func (r *Router) Register(event string, handler HandlerFunc) {
	r.handlers[event] = handler
}

// Dispatch routes one frame. Handler panics are contained per-frame so a
// bad message cannot take the connection's read loop down.
func (r *Router) Dispatch(ctx context.Context, conn *Conn, frame Frame) {
	handler, ok := r.handlers[frame.Event]
	if !ok {
		r.log.Warn("No handler for inbound event", "event", frame.Event, "conn", conn.ID)
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Handler panicked", "event", frame.Event, "conn", conn.ID, "panic", rec)
		}
	}()
	handler(ctx, conn, frame.Data)
}
