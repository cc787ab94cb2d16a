package main

import (
	"flag"

	"github.com/matheus3301/wabot/internal/daemon"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", "", "config file path (overrides ~/.wabot/config.toml)")
	listenFlag := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{
			ConfigPath: *configFlag,
			ListenAddr: *listenFlag,
		}),
	)

	app.Run()
}
