// Package env resolves the runtime environment the process runs in.
package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/salience/internal/envvar"
)

// Environment is the runtime environment of the process.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// FromEnv reads the environment from SALIENCE_ENV. Anything other than
// "production" (or "prod") means development.
func FromEnv() Environment {
	switch strings.ToLower(os.Getenv(envvar.SalienceEnv)) {
	case "production", "prod":
		return Production
	default:
		return Development
	}
}
