// Package testlog routes package tests through the test logging profile.
package testlog

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/emberctl/internal/logging"
)

// Start configures test logging and returns a logger tagged with the test
// name. A test.end line with the outcome is logged on cleanup.
func Start(t testing.TB) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	l := log.With().Str("test", t.Name()).Logger()
	l.Info().Msg("test.start")
	t.Cleanup(func() {
		l.Info().Bool("failed", t.Failed()).Msg("test.end")
	})
	return l
}
