package config

import (
	"flag"
	"os"
	"time"

	"github.com/avelkov/licbroker/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   bearer-token HMAC secret key
//	-u string   upstream entitlement service base URL
//	-k string   upstream API key
//	-v string   upstream API variant ("user" or "school")
//	-t int      upstream request timeout, seconds
//	-b string   base name for chunked entitlement attributes
//	-p string   deletion policy ("none", "federated", "all")
//	-w int      graceful shutdown timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers in seconds.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-u", "-k", "-v", "-t", "-b", "-p", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.UpstreamBaseURL, "u", config.UpstreamBaseURL, "upstream base URL")
	fs.StringVar(&config.UpstreamAPIKey, "k", config.UpstreamAPIKey, "upstream API key")
	fs.StringVar(&config.UpstreamAPIVariant, "v", config.UpstreamAPIVariant, "upstream API variant")

	upstreamTimeout := fs.Int("t", int(config.UpstreamTimeout.Seconds()), "upstream_timeout (in seconds)")

	fs.StringVar(&config.EntitlementAttributeBase, "b", config.EntitlementAttributeBase, "entitlement attribute base name")
	fs.StringVar(&config.DeletionPolicy, "p", config.DeletionPolicy, "deletion policy")

	shutdownTimeout := fs.Int("w", int(config.ShutdownTimeout.Seconds()), "shutdown_timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.UpstreamTimeout = time.Duration(*upstreamTimeout) * time.Second
	config.ShutdownTimeout = time.Duration(*shutdownTimeout) * time.Second
}
