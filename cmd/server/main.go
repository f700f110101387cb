package main

import (
	"github.com/clearbridge/oppgraph/internal/server"
	"github.com/clearbridge/oppgraph/internal/util"
	"github.com/clearbridge/oppgraph/pkg/logger"
	"github.com/clearbridge/oppgraph/pkg/logger/console"

	_ "github.com/lib/pq"
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
