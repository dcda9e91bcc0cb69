package main

import (
	"os"

	"github.com/mapfeed/tilewalk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
