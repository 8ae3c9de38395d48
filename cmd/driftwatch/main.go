package main

import (
	"errors"
	"fmt"
	"os"
)

// @title           DriftWatch API
// @version         1.0
// @description     REST API for API contract drift monitoring: probes, baselines and runs.

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /
// @schemes   http
func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
