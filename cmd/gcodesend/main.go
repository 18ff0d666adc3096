// Command gcodesend streams G-code programs to a serial motion controller.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
