// Package logging provides structured logging for scrdeskctl, built on the
// standard library's slog package.
//
// All log entries carry a subsystem identifier so output can be filtered by
// component (Session, AuthClient, OAuthFlow, AuthState, Config). Credentials
// and token values must never be passed to any logging function; callers log
// endpoints, providers, and error messages only.
//
// Initialize once at startup:
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("Bootstrap", "starting scrdeskctl %s", version)
package logging
