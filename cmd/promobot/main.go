package main

import (
	"log"

	"github.com/promokod/promobot/bot/app"
	"github.com/promokod/promobot/core/buildinfo"
	"github.com/promokod/promobot/core/cmd"
)

func main() {
	log.Printf("promobot %s (%s)", buildinfo.Version, buildinfo.Commit)
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("promobot: %v", err)
	}
}
