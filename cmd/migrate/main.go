package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"github.com/intelogroup/searchmatic/db"
	"github.com/intelogroup/searchmatic/internal/utils"
	"github.com/intelogroup/searchmatic/migrations"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [status|up]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger := utils.MustNewLogger(cfg.Logging)
	defer logger.Sync()
	sugar := logger.Sugar().Named("migrate")

	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		sugar.Fatalw("postgres connect failed", "error", err)
	}
	defer postgres.Close()

	runner, err := migrations.NewRunner(postgres.Pool, sugar, migrations.All())
	if err != nil {
		sugar.Fatalw("runner init failed", "error", err)
	}

	switch command {
	case "status":
		applied, err := runner.Applied(ctx)
		if err != nil {
			sugar.Fatalw("read ledger failed", "error", err)
		}

		ids := make([]string, 0, len(applied))
		for id := range applied {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		fmt.Printf("%d applied migration(s):\n", len(ids))
		for _, id := range ids {
			fmt.Printf("- %s (applied %s)\n", id, applied[id].Format("2006-01-02 15:04:05"))
		}
	case "up":
		summary, err := runner.Run(ctx)
		if err != nil {
			fmt.Printf("applied: %v\nskipped: %v\nfailed: %s\n", summary.Applied, summary.Skipped, summary.Failed)
			sugar.Errorw("migration run failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("applied: %v\nskipped: %v\n", summary.Applied, summary.Skipped)
	default:
		flag.Usage()
		os.Exit(2)
	}
}
