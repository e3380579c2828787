// Package server provides the local HTTP receiver for the OAuth redirect.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers
// method-qualified patterns on an [http.ServeMux], so requests with the wrong method get 405.
//
// [Middleware] is applied so that the first one added is outermost. [RequestLogger] tags every
// request with an ID (also sent back as X-Request-ID) and logs method, path, status and duration.
//
// # Callback Handler
//
// [CallbackHandler] serves the path of the configured redirect URI. The first request is handed to
// the authenticator's callback state machine and its result is published once on a channel; the
// browser gets an HTML page with the status line. Later requests get 409 without touching the
// credential store, so a reloaded tab can never trigger a second token exchange.
//
// When the login was started with a state value, a callback carrying a different one fails with
// [ErrStateMismatch] before any exchange.
//
// # Lifecycle
//
// [Listen] binds synchronously so a port conflict is reported before the browser is opened. The
// CLI shuts the server down once a result arrives or the login times out.
package server
