package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component derives a sub-logger tagged with the owning subsystem so
// device, poll, and http lines are filterable in mixed output.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}
