// cmd/main.go is the application entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/cli"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("ewm failed")
		os.Exit(1)
	}
}
