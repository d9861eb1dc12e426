package main

import (
	"flag"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docchat/internal/answer"
	"docchat/internal/api"
	"docchat/internal/config"
	"docchat/internal/embed"
	"docchat/internal/session"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	embedder, err := embed.NewOpenAI(&cfg.Provider)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	generator, err := answer.NewOpenAI(&cfg.Provider, &cfg.Generation)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing generator")
	}

	sessions := session.NewManager(cfg, embedder, generator)

	app := fiber.New(fiber.Config{
		BodyLimit: 32 << 20, // uploads up to 32 MiB
	})
	api.RegisterRoutes(app, sessions)

	log.Info().Str("addr", cfg.ServerAddr).Msg("server started")
	log.Fatal().Err(app.Listen(cfg.ServerAddr)).Msg("server stopped")
}
