package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docchat/internal/answer"
	"docchat/internal/config"
	"docchat/internal/embed"
	"docchat/internal/session"
	"docchat/internal/tui"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the document file (PDF or DOCX)")
	query := flag.String("query", "", "Question to answer against the document")
	chat := flag.Bool("chat", false, "Start an interactive chat after loading the document")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *filePath == "" {
		log.Fatal().Msg("Please provide a document file using the -file flag")
	}
	if *query == "" && !*chat {
		log.Fatal().Msg("Please provide a question using the -query flag, or -chat for an interactive session")
	}

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

	s, err := session.New(cfg, embedder, generator)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating session")
	}

	ctx := context.Background()
	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading document file")
	}
	if err := s.Load(ctx, *filePath, data); err != nil {
		log.Fatal().Err(err).Msg("Error loading document")
	}

	if *chat {
		if _, err := tea.NewProgram(tui.New(s), tea.WithAltScreen()).Run(); err != nil {
			log.Fatal().Err(err).Msg("Error running chat")
		}
		return
	}

	turn, err := s.Ask(ctx, *query, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering question")
	}

	fmt.Printf("Question:\n%s\n\n", turn.Query)
	fmt.Printf("Answer:\n%s\n\n", turn.Answer)
	fmt.Println("Sources:")
	for _, c := range turn.Sources {
		fmt.Printf("  #%d [%d:%d] %s\n", c.Ordinal, c.Start, c.End, snippet(c.Text, 80))
	}
}

func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
