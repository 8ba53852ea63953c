// Command dbpooldemo exercises github.com/relaysql/dbpool against a mock
// factory (or a real driver, via --driver) from the command line: serve
// exposes a /status endpoint mirroring the pool's worker states, and
// loadtest drives it with many concurrent simulated callers.
package main

import "os"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
