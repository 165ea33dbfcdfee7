package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()

	require.Equal(t, ":8080", c.EndpointAddrHTTP)
	require.Equal(t, "vidis_licence", c.EntitlementAttributeBase)
	require.Equal(t, "federated", c.DeletionPolicy)
	require.Equal(t, "user", c.UpstreamAPIVariant)
	require.Equal(t, 5*time.Second, c.UpstreamTimeout)
	require.Empty(t, c.UpstreamBaseURL, "upstream must be explicitly configured")
	require.Empty(t, c.UpstreamAPIKey)
}

func TestLoadConfig_DefaultsWhenNoArgs(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"server"}

	c := LoadConfig()
	require.Equal(t, ":8080", c.EndpointAddrHTTP)
	require.Equal(t, 10*time.Second, c.ShutdownTimeout)
}
