// Package main is the entry point for the listify binary.
package main

import (
	"github.com/dmaier/listify/cmd/listify/cmd"
)

func main() {
	cmd.Execute()
}
