package main

import (
	"os"

	"github.com/kilianp07/bayplan/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
