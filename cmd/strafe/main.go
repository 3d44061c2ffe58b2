package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/strafehq/strafe/pkg/config"
	"github.com/strafehq/strafe/pkg/version"
)

var CLI struct {
	Version bool `help:"Print version information and exit." short:"v"`
	Debug   bool `help:"Whether to enable debug logging."`

	Gateway struct {
		Configs []string `arg:"" optional:"" name:"configs" help:"Configuration files for the gateway." type:"file"`
	} `cmd:"" help:"Start the websocket gateway."`

	Bots struct {
		Count   int      `help:"How many bots to run (overrides the config)." default:"0"`
		Memory  bool     `help:"Use the in-process transport instead of Redis."`
		Configs []string `arg:"" optional:"" name:"configs" help:"Configuration files for the bots." type:"file"`
	} `cmd:"" help:"Run a swarm of bots against the world."`

	Config struct {
	} `cmd:"" help:"Write strafe's default configuration to standard output."`
}

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func main() {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(consoleWriter)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx := kong.Parse(&CLI,
		kong.Name("strafe"),
		kong.Description("state reconciliation services for a multiplayer FPS demo"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if CLI.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Warn().Msg("debug logging enabled")
	}

	if CLI.Version {
		fmt.Printf(
			"strafe %s (commit %s)\n",
			version.Version,
			version.GitCommit,
		)
		fmt.Printf(
			"built %s\n",
			version.BuildTime,
		)
		os.Exit(0)
	}

	switch ctx.Command() {
	case "gateway":
		fallthrough
	case "gateway <configs>":
		if err := gatewayCommand(CLI.Gateway.Configs); err != nil {
			writeError(err)
		}
	case "bots":
		fallthrough
	case "bots <configs>":
		if err := botsCommand(CLI.Bots.Configs); err != nil {
			writeError(err)
		}
	case "config":
		os.Stdout.Write(config.DEFAULT)
	}
}
