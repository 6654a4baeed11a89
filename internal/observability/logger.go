package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger scopes the process-wide logger to the named app and
// installs the result globally. Callers configure the output profile
// first; InitLogger only adds the app field on top of it.
func InitLogger(app string) zerolog.Logger {
	logger := scopeLogger(log.Logger, app)
	log.Logger = logger
	return logger
}

func scopeLogger(base zerolog.Logger, app string) zerolog.Logger {
	return base.With().Str("app", app).Logger()
}
