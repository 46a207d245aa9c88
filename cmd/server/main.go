package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"agendabot/internal/app"
	"agendabot/internal/chatbot"
	"agendabot/internal/config"
	"agendabot/internal/platform/whatsapp"
	"agendabot/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := app.NewLogger(cfg.Log)

	db, err := connectDB(cfg.Database, log)
	if err != nil {
		log.Error("could not connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(cfg.Database); err != nil {
		log.Error("migrations failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("migrations applied")

	appointmentStore := chatbot.NewAppointmentStore(db)
	conversationStore := chatbot.NewConversationStore(db)
	historyStore := chatbot.NewHistoryStore(db)

	svc := chatbot.NewService(appointmentStore, conversationStore, historyStore, log)
	chatbotHandler := chatbot.NewHandler(svc, appointmentStore, historyStore, log)

	reportSvc := report.NewService(appointmentStore)
	reportHandler := report.NewHandler(reportSvc, log)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		chatbot.RegisterRoutes(r, chatbotHandler)
		r.Get("/reports/appointments", reportHandler.HandleAppointmentsReport)

		waClient := whatsapp.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
		if waClient.Configured() {
			whatsapp.RegisterRoutes(r, whatsapp.NewHandler(svc, waClient, log))
			log.Info("whatsapp gateway enabled")
		} else {
			log.Warn("whatsapp gateway disabled: twilio credentials not configured")
		}
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info("server starting", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func connectDB(cfg config.DatabaseConfig, log *slog.Logger) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < cfg.ConnectRetries; i++ {
		db, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			log.Info("connected to database")
			return db, nil
		}
		log.Info("waiting for database",
			slog.Int("attempt", i+1),
			slog.Int("max_attempts", cfg.ConnectRetries))
		time.Sleep(cfg.ConnectDelay)
	}
	return nil, err
}

func runMigrations(cfg config.DatabaseConfig) error {
	m, err := migrate.New(cfg.MigrationsPath, cfg.DSN)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
