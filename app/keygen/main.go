// This program generates and inspects account keys used by a node.
package main

import (
	"github.com/adamwoolhether/tangle/app/keygen/cmd"
)

func main() {
	cmd.Execute()
}
