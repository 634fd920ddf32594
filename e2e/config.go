package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// BASE_URL points the suite at an already running deployment.
	// Left empty, the suite boots an in-process server on a temp store.
	BaseURL string `envconfig:"BASE_URL"`
	// E2E_DEBUG_JSON allows dumping full HTTP request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_WS_READ_TIMEOUT bounds every websocket read in the scenario steps
	WSReadTimeout string `envconfig:"E2E_WS_READ_TIMEOUT" default:"3s"`
	// E2E_PAGE_SIZE must match the server's MESSAGE_FETCH_LIMIT when
	// targeting an external deployment
	PageSize int `envconfig:"E2E_PAGE_SIZE" default:"3"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
