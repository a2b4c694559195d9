// main.go

package main

import (
	"github.com/opsbrew/canvasup/cmd"
	"github.com/opsbrew/canvasup/pkg/logger"
	"github.com/opsbrew/canvasup/pkg/telemetry"
)

func main() {
	logger.InitializeWithFallback()

	if err := telemetry.Init("canvasup"); err != nil {
		logger.L().Warn("Telemetry disabled: " + err.Error())
	}

	cmd.Execute()
}
