// Package cli implements the sysaura command-line interface.
//
// The root command is "sysaura" with subcommands:
//
//	sysaura serve                 - Run the collector HTTP and WebSocket server
//	sysaura token                 - Issue an access token for a user
//	sysaura config init           - Write a default sysaura.yaml
//	sysaura system [add|list]     - Register and list monitored systems
//	sysaura user add              - Register a user who can own systems
//	sysaura version               - Print build information
//
// The global --config flag selects the config file; without it sysaura.yaml
// in the working directory is used when present. SYSAURA_* environment
// variables override file values.
package cli
