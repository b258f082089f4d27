package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

type sessionKey string

const (
	SessionKeyGuest        = sessionKey("guest")
	SessionKeyBackendToken = sessionKey("backendToken")
)

func (s sessionKey) String() string {
	return string(s)
}

type contextKey string

const engineContextKey = contextKey("engine")

func contextSetEngine(r *http.Request, engine *Engine) *http.Request {
	ctx := context.WithValue(r.Context(), engineContextKey, engine)
	return r.WithContext(ctx)
}

func (app *Application) contextGetEngine(r *http.Request) *Engine {
	engine, ok := r.Context().Value(engineContextKey).(*Engine)
	if !ok {
		panic("missing engine from context")
	}

	return engine
}

func (app *Application) contextGetLogger(r *http.Request) *slog.Logger {
	return app.logger.With("request_id", middleware.GetReqID(r.Context()))
}
