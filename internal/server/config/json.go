package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avelkov/licbroker/internal/flagx"
	"github.com/avelkov/licbroker/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "5s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP         string         `json:"endpoint_addr_http"`
	DatabaseDSN              string         `json:"database_dsn"`
	SecretKey                string         `json:"secret_key"`
	UpstreamBaseURL          string         `json:"upstream_base_url"`
	UpstreamAPIKey           string         `json:"upstream_api_key"`
	UpstreamAPIVariant       string         `json:"upstream_api_variant"`
	UpstreamTimeout          timex.Duration `json:"upstream_timeout"`
	EntitlementAttributeBase string         `json:"entitlement_attribute_base"`
	DeletionPolicy           string         `json:"deletion_policy"`
	ShutdownTimeout          timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; when
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics. Only fields the file actually
// sets are copied, so a partial file overrides just those values and the
// defaults survive for the rest. The caller merges these values with
// defaults and command-line flags as part of the full configuration process.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.UpstreamBaseURL != "" {
		config.UpstreamBaseURL = c.UpstreamBaseURL
	}
	if c.UpstreamAPIKey != "" {
		config.UpstreamAPIKey = c.UpstreamAPIKey
	}
	if c.UpstreamAPIVariant != "" {
		config.UpstreamAPIVariant = c.UpstreamAPIVariant
	}
	if c.UpstreamTimeout.Duration != 0 {
		config.UpstreamTimeout = time.Duration(c.UpstreamTimeout.Duration)
	}
	if c.EntitlementAttributeBase != "" {
		config.EntitlementAttributeBase = c.EntitlementAttributeBase
	}
	if c.DeletionPolicy != "" {
		config.DeletionPolicy = c.DeletionPolicy
	}
	if c.ShutdownTimeout.Duration != 0 {
		config.ShutdownTimeout = time.Duration(c.ShutdownTimeout.Duration)
	}
}
