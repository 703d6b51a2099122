package main

import (
	"os"

	"github.com/user/mpki_plotter_go/internal/config"
	"github.com/user/mpki_plotter_go/internal/logging"
)

func main() {
	logger := logging.GetLogger()
	config.LoadEnvironment(".env")

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		logger.WithError(err).Error("mpki_plotter failed")
		os.Exit(1)
	}
}
