package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/audit"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/auth"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/observability/metrics"
	payoutapp "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/application"
	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
	payoutrepo "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/infrastructure/postgres"
	payouthttp "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/interfaces/http"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/notify"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/railadapter"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	engineCfg, err := payoutapp.LoadConfig()
	if err != nil {
		logger.Fatalf("payouts config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	rail, err := railadapter.NewClient(cfg.RailBaseURL, cfg.RailAPIKey)
	if err != nil {
		logger.Fatalf("rail client error: %v", err)
	}

	statementRepo := payoutrepo.NewStatementRepository(db)
	accountRepo := payoutrepo.NewAccountRepository(db)
	eventStore := payoutrepo.NewWebhookEventStore(db)

	var opsNotifier notify.Notifier = notify.NopNotifier{}
	if engineCfg.OpsWebhookURL != "" {
		opsNotifier = notify.NewWebhookNotifier(engineCfg.OpsWebhookURL)
	}

	fees := payouts.NewFeeCalculator(engineCfg.FeeRate)
	resolver, err := payoutapp.NewAccountResolver(accountRepo)
	if err != nil {
		logger.Fatalf("account resolver error: %v", err)
	}
	guard, err := payoutapp.NewBalanceGuard(rail, engineCfg.TopUpBufferPct)
	if err != nil {
		logger.Fatalf("balance guard error: %v", err)
	}
	processor, err := payoutapp.NewSettlementProcessor(statementRepo, resolver, fees, rail, engineCfg, systemClock{}, logger)
	if err != nil {
		logger.Fatalf("settlement processor error: %v", err)
	}
	coordinator, err := payoutapp.NewBatchCoordinator(statementRepo, resolver, guard, processor, fees, engineCfg, systemClock{}, logger, opsNotifier)
	if err != nil {
		logger.Fatalf("batch coordinator error: %v", err)
	}
	drainer, err := payoutapp.NewQueueDrainer(statementRepo, guard, processor, fees, engineCfg, systemClock{}, logger, opsNotifier)
	if err != nil {
		logger.Fatalf("queue drainer error: %v", err)
	}
	accountService, err := payoutapp.NewAccountService(accountRepo, rail, engineCfg)
	if err != nil {
		logger.Fatalf("account service error: %v", err)
	}
	auditor, err := payoutapp.NewSettlementAuditor(statementRepo, rail, logger)
	if err != nil {
		logger.Fatalf("settlement auditor error: %v", err)
	}

	scheduler := cron.New()
	if engineCfg.Audit.Schedule != "" {
		_, err := scheduler.AddFunc(engineCfg.Audit.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			since := time.Now().UTC().AddDate(0, 0, -engineCfg.Audit.Lookback)
			discrepancies, err := auditor.Audit(ctx, since)
			if err != nil {
				logger.Printf("settlement audit error: %v", err)
				return
			}
			if len(discrepancies) == 0 {
				return
			}
			logger.Printf("settlement audit found %d discrepancies", len(discrepancies))
			msg := notify.AlertMessage{
				Event:  "settlement.audit",
				Detail: "settlement audit found discrepancies",
			}
			for _, d := range discrepancies {
				msg.StatementIDs = append(msg.StatementIDs, d.StatementID)
			}
			if err := opsNotifier.Notify(ctx, msg); err != nil {
				logger.Printf("settlement audit notify error: %v", err)
			}
		})
		if err != nil {
			logger.Fatalf("audit schedule error: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	payoutHandler, err := payouthttp.NewHandler(processor, coordinator, drainer, accountService, auditor, statementRepo, auditRepo, logger)
	if err != nil {
		logger.Fatalf("payouts handler error: %v", err)
	}
	webhookHandler, err := payouthttp.NewWebhookHandler(drainer, accountService, eventStore, logger)
	if err != nil {
		logger.Fatalf("rail webhook handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/webhooks/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	webhookAuth := auth.NewWebhookAuthMiddleware([]byte(cfg.WebhookSecret), time.Duration(cfg.WebhookSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/webhooks/rail", webhookAuth.Wrap(webhookHandler))
	mux.Handle("/api/v1/payouts/settle", payoutHandler)
	mux.Handle("/api/v1/payouts/fund-and-queue", payoutHandler)
	mux.Handle("/api/v1/payouts/process-queued", payoutHandler)
	mux.Handle("/api/v1/payouts/accounts/refresh", payoutHandler)
	mux.Handle("/api/v1/payouts/audit", payoutHandler)
	mux.Handle("/api/v1/payouts/statements/", payoutHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL        string
	HTTPAddr           string
	RailBaseURL        string
	RailAPIKey         string
	JWTSecret          string
	WebhookSecret      string
	WebhookSkewSeconds int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		RailBaseURL:        getenvDefault("RAIL_BASE_URL", ""),
		RailAPIKey:         getenvDefault("RAIL_API_KEY", ""),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		WebhookSecret:      getenvDefault("RAIL_WEBHOOK_SECRET", ""),
		WebhookSkewSeconds: getenvIntDefault("RAIL_WEBHOOK_MAX_SKEW_SECONDS", 300),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.RailBaseURL == "" {
		log.Fatal("RAIL_BASE_URL is required")
	}
	if cfg.RailAPIKey == "" {
		log.Fatal("RAIL_API_KEY is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
