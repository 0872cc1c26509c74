package main

import (
	"os"

	"github.com/eddielth/signal-monitor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
