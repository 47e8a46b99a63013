package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"invoicewatch/cmd"
	"invoicewatch/internal/config"
	"invoicewatch/internal/logger"
)

func main() {
	// A missing .env is normal in deployments configured through the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Flags are not parsed yet; commands reload the configuration with them.
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting invoicewatch")

	cmd.Execute()

	log.Debug().Msg("invoicewatch shutdown")
	os.Exit(0)
}
