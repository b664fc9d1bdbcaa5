package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/snfs/pkg/core"
)

func main() {
	Execute()
}

// fatal reports err and exits. Crypto and protocol failures exit with 2, a
// missing MFA code with 3.
func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case core.IsFatal(err):
		return 2
	case errors.Is(err, core.ErrMFARequired):
		return 3
	default:
		return 1
	}
}
