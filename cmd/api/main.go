package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/MozzammelRidoy/car-doctor-server/internal/http/handlers"
	appmw "github.com/MozzammelRidoy/car-doctor-server/internal/http/middleware"
	"github.com/MozzammelRidoy/car-doctor-server/internal/notify"
	"github.com/MozzammelRidoy/car-doctor-server/internal/platform/mailer"
	"github.com/MozzammelRidoy/car-doctor-server/internal/repo/postgres"
	"github.com/MozzammelRidoy/car-doctor-server/pkg/config"
	"github.com/MozzammelRidoy/car-doctor-server/pkg/database"
	"github.com/MozzammelRidoy/car-doctor-server/pkg/events"
	"github.com/MozzammelRidoy/car-doctor-server/pkg/logger"
	mw "github.com/MozzammelRidoy/car-doctor-server/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to event bus; the API stays up without it
	var bus events.EventBus
	if natsBus, err := events.NewNATSEventBus(cfg.NATS.URL); err != nil {
		logger.Warn("NATS unreachable, continuing without events", "error", err)
		bus = events.NopBus{}
	} else {
		defer natsBus.Close()
		bus = natsBus
	}

	// Mailer + notification consumer
	var mail mailer.Service
	if cfg.Email.DevMode {
		mail = mailer.NewDevMailer()
	} else {
		mail = mailer.NewMailer(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	}
	if err := notify.New(mail).Start(bus); err != nil {
		logger.Warn("Failed to start notifier", "error", err)
	}

	// Rate limiter for token minting; skipped when Redis is misconfigured
	var limitTokenMint func(http.Handler) http.Handler
	if opts, err := redis.ParseURL(cfg.Redis.URL); err != nil {
		logger.Warn("Invalid Redis URL, token mint rate limiting disabled", "error", err)
	} else {
		rl := appmw.NewRateLimiter(redis.NewClient(opts), appmw.RateLimitConfig{
			Requests: 20,
			Window:   time.Minute,
			KeyFunc:  appmw.ClientIPKeyFunc,
		})
		limitTokenMint = rl.Middleware()
	}

	// Initialize repositories and handlers
	servicesRepo := postgres.NewServicesRepository(pool)
	bookingsRepo := postgres.NewBookingsRepository(pool)

	authHandler := handlers.NewAuthHandler(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	servicesHandler := handlers.NewServicesHandler(servicesRepo)
	bookingsHandler := handlers.NewBookingsHandler(bookingsRepo, bus)
	session := appmw.NewSession(cfg.Auth.JWTSecret)

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Doctor Is Running"))
	})

	if limitTokenMint != nil {
		r.With(limitTokenMint).Post("/jwt", authHandler.IssueToken)
	} else {
		r.Post("/jwt", authHandler.IssueToken)
	}
	r.Post("/logout", authHandler.Logout)

	r.Get("/services", servicesHandler.List)
	r.Get("/services/{id}", servicesHandler.Get)

	r.Post("/bookings", bookingsHandler.Create)
	r.Group(func(pr chi.Router) {
		pr.Use(session.Require)
		pr.Get("/bookings", bookingsHandler.List)
		pr.Patch("/bookings/{id}", bookingsHandler.UpdateStatus)
		pr.Delete("/bookings/{id}", bookingsHandler.Delete)
	})
	r.With(session.RequireAdmin).Get("/admin/bookings", bookingsHandler.ListAll)

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down car doctor server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting car doctor server", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
