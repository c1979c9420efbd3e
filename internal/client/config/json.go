package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/fortress/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals
// are plain seconds so config files stay trivial.
type JsonConfig struct {
	DatabasePath          string `json:"database_path"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// parseJson overlays cfg with values from the JSON file named by the -c or
// -config flag. With no such flag nothing is loaded.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeoutSeconds) * time.Second
	}
}
