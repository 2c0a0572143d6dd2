package main

import (
	"github.com/1145-am/orggraph/internal/server"
	"github.com/1145-am/orggraph/internal/util"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
