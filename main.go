// The main package for the prerender executable.
package main

import (
	"github.com/JakeFAU/jobboard-prerender/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
