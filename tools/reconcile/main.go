package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	payoutapp "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/application"
	payoutrepo "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/infrastructure/postgres"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/railadapter"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dbURL     string
	railURL   string
	railKey   string
	sinceDays int
	outDir    string
}

func main() {
	cfg := parseFlags()

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	rail, err := railadapter.NewClient(cfg.railURL, cfg.railKey)
	if err != nil {
		log.Fatalf("rail client error: %v", err)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	auditor, err := payoutapp.NewSettlementAuditor(payoutrepo.NewStatementRepository(db), rail, logger)
	if err != nil {
		log.Fatalf("auditor error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	since := time.Now().UTC().AddDate(0, 0, -cfg.sinceDays)
	discrepancies, err := auditor.Audit(ctx, since)
	if err != nil {
		log.Fatalf("audit error: %v", err)
	}

	sort.Slice(discrepancies, func(i, j int) bool {
		if discrepancies[i].Kind != discrepancies[j].Kind {
			return discrepancies[i].Kind < discrepancies[j].Kind
		}
		return discrepancies[i].StatementID < discrepancies[j].StatementID
	})

	outPath := filepath.Join(cfg.outDir, fmt.Sprintf("payout-reconcile-%s.csv", time.Now().UTC().Format("20060102-150405")))
	if err := writeCSV(outPath, discrepancies); err != nil {
		log.Fatalf("write csv error: %v", err)
	}

	fmt.Printf("since=%s discrepancies=%d out=%s\n", since.Format(time.RFC3339), len(discrepancies), outPath)
	if len(discrepancies) > 0 {
		os.Exit(1)
	}
}

func parseFlags() config {
	cfg := config{}
	flag.StringVar(&cfg.dbURL, "db", os.Getenv("DATABASE_URL"), "postgres connection string")
	flag.StringVar(&cfg.railURL, "rail-url", os.Getenv("RAIL_BASE_URL"), "payment rail base url")
	flag.StringVar(&cfg.railKey, "rail-key", os.Getenv("RAIL_API_KEY"), "payment rail api key")
	flag.IntVar(&cfg.sinceDays, "since-days", 7, "lookback window in days")
	flag.StringVar(&cfg.outDir, "out", ".", "output directory")
	flag.Parse()

	if cfg.dbURL == "" {
		log.Fatal("-db or DATABASE_URL is required")
	}
	if cfg.railURL == "" {
		log.Fatal("-rail-url or RAIL_BASE_URL is required")
	}
	if cfg.railKey == "" {
		log.Fatal("-rail-key or RAIL_API_KEY is required")
	}
	if cfg.sinceDays <= 0 {
		log.Fatal("-since-days must be positive")
	}
	return cfg
}

func writeCSV(path string, discrepancies []payoutapp.Discrepancy) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"kind", "statement_id", "payout_transfer_id", "rail_transfer_id", "detail"}); err != nil {
		return err
	}
	for _, d := range discrepancies {
		row := []string{d.Kind, d.StatementID, d.PayoutTransferID, d.RailTransferID, d.Detail}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return writer.Error()
}
