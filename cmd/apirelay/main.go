// The main package for the apirelay executable.
package main

import (
	"apirelay/cmd"
)

func main() {
	cmd.Execute()
}
