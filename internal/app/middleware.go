package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/enrolhub/checkout-engine/internal/gateway"
)

func (app *Application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")

				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (app *Application) ensureSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionId := app.sessionManager.Token(r.Context())

		if sessionId == "" {
			app.sessionManager.Put(r.Context(), SessionKeyGuest.String(), true)

			_, _, err := app.sessionManager.Commit(r.Context())
			if err != nil {
				app.serverErrorResponse(w, r, err)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// bindEngine attaches the engine of the session and the backend credentials
// to the request. A bearer token sent with the request replaces the one
// remembered by the session. Each backend identity gets its own engine, and
// the engine of the identity it replaces is retired.
func (app *Application) bindEngine(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionToken := app.sessionManager.Token(r.Context())
		previous := app.sessionManager.GetString(r.Context(), SessionKeyBackendToken.String())

		token := bearerToken(r)
		switch {
		case token == "":
			token = previous

		case token != previous:
			app.sessionManager.Put(r.Context(), SessionKeyBackendToken.String(), token)

			if app.engines.retire(r.Context(), engineKey(sessionToken, previous)) {
				app.contextGetLogger(r).Info("backend identity changed, previous basket dropped", "session", shortToken(sessionToken))
			}
		}

		engine := app.engines.get(engineKey(sessionToken, token))

		r = contextSetEngine(r, engine)
		r = r.WithContext(gateway.WithToken(r.Context(), token))

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}
