package main

import (
	"errors"
	"fmt"
	"os"
)

// exitError carries the process exit code through cobra: 1 for fatal errors
// and runs that completed with failures, 2 for an interrupted run whose
// checkpoint was persisted.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.msg != "" {
				fmt.Fprintln(os.Stderr, ee.msg)
			}
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
