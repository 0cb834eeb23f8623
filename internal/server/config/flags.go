package config

import (
	"flag"
	"os"
	"strings"

	"github.com/janus-sso/janus/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-z string   ext_authz gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-i string   WebAuthn relying-party ID (domain)
//	-n string   WebAuthn relying-party display name
//	-o string   comma-separated allowed WebAuthn origins
//	-u string   public base URL
//	-s string   Bearer JWT HMAC secret key
//	-k string   bootstrap admin token
//	-m bool     run schema migrations on startup
//
// Lifetimes are configured via the JSON overlay; they rarely change per
// invocation. The function first filters os.Args to only the flags it
// recognizes using flagx.FilterArgs, avoiding collisions with other
// components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-z", "-d", "-i", "-n", "-o", "-u", "-s", "-k", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port for the HTTP API")
	fs.StringVar(&config.EndpointAddrAuthz, "z", config.EndpointAddrAuthz, "address and port for the ext_authz gRPC endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RPID, "i", config.RPID, "relying-party ID")
	fs.StringVar(&config.RPDisplayName, "n", config.RPDisplayName, "relying-party display name")
	fs.StringVar(&config.PublicBaseURL, "u", config.PublicBaseURL, "public base URL")
	fs.StringVar(&config.BearerSecret, "s", config.BearerSecret, "secret key")
	fs.StringVar(&config.AdminToken, "k", config.AdminToken, "bootstrap admin token")
	fs.BoolVar(&config.RunMigrations, "m", config.RunMigrations, "run migrations on startup")

	origins := fs.String("o", strings.Join(config.RPOrigins, ","), "allowed origins (comma-separated)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *origins != "" {
		config.RPOrigins = strings.Split(*origins, ",")
	}
}
