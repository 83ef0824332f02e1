// Command coachctl runs the coaching math offline: phase splits, calendar
// mapping, pace conversions, plan validation and workout scoring.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
