package main

import (
	"flag"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"gocompare/adapters/api"
	"gocompare/app"
	"gocompare/internal"
	"gocompare/internal/config"
	"gocompare/internal/errors"
)

// initDatabase opens the configured SQL data source. Without DATABASE_URL
// the server runs with inline data sources only.
func initDatabase(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.URL == "" {
		return nil, nil
	}
	db, err := sqlx.Connect(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	return db, nil
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	if db != nil {
		defer db.Close()
		logger.Info("table data sources enabled (%s)", cfg.Database.Driver)
	}

	server := api.NewServer(app.NewBatchService(cfg, logger), db, logger)
	if err := server.Start(cfg.Server.Addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
