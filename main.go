package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chepyr/go-day-planner/internal/calendar"
	"github.com/chepyr/go-day-planner/internal/db"
	"github.com/chepyr/go-day-planner/internal/handlers"
	"github.com/chepyr/go-day-planner/internal/notify"
	"github.com/chepyr/go-day-planner/internal/scheduler"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	validateEnv()
	dbConn := initDB()
	defer dbConn.Close()

	initHandlers(dbConn)
	server := initServer()
	startServer(server)
}

func validateEnv() {
	requiredEnvVars := []string{
		"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"POSTGRES_HOST", "POSTGRES_PORT", "SERVER_PORT",
		"JWT_SECRET",
	}
	for _, env := range requiredEnvVars {
		if os.Getenv(env) == "" {
			log.Fatalf("Environment variable %s must be set", env)
		}
	}
}

func initDB() *sql.DB {
	user := os.Getenv("POSTGRES_USER")
	password := os.Getenv("POSTGRES_PASSWORD")
	dbname := os.Getenv("POSTGRES_DB")
	port := os.Getenv("POSTGRES_PORT")
	host := os.Getenv("POSTGRES_HOST")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port)

	dbConn, err := db.Connect("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return dbConn
}

func initHandlers(dbConn *sql.DB) *handlers.Handler {
	taskRepo := db.NewTaskRepository(dbConn)
	userRepo := db.NewUserRepository(dbConn)
	accountRepo := db.NewAccountRepository(dbConn)

	aggregator := calendar.NewAggregator(accountRepo, 5*time.Second, buildProviders(accountRepo)...)

	sched := scheduler.New(taskRepo, userRepo, aggregator, scheduler.DefaultConfig())

	handler := &handlers.Handler{
		UserRepo:    userRepo,
		TaskRepo:    taskRepo,
		AccountRepo: accountRepo,
		Scheduler:   sched,
		RateLimiter: handlers.NewRateLimiter(5, time.Second),
		WSHub:       handlers.NewWSHub(),
		Notifier:    notify.NewLogNotifier(),
	}
	sched.Events = handler.TaskEventSink

	http.HandleFunc("/register", handler.Register)
	http.HandleFunc("/login", handler.Login)
	http.HandleFunc("/tasks", handler.AuthMiddleware(handler.HandleTasks))
	http.HandleFunc("/tasks/complete", handler.AuthMiddleware(handler.HandleComplete))
	http.HandleFunc("/tasks/postpone", handler.AuthMiddleware(handler.HandlePostpone))
	http.HandleFunc("/tasks/unpostpone", handler.AuthMiddleware(handler.HandleUnpostpone))
	http.HandleFunc("/tasks/snooze", handler.AuthMiddleware(handler.HandleSnooze))
	http.HandleFunc("/tasks/extend", handler.AuthMiddleware(handler.HandleExtend))
	http.HandleFunc("/tasks/swap", handler.AuthMiddleware(handler.HandleSwap))
	http.HandleFunc("/tasks/", handler.AuthMiddleware(handler.HandleTaskByID))
	http.HandleFunc("/schedule", handler.AuthMiddleware(handler.HandleSchedule))
	http.HandleFunc("/calendar/availability", handler.AuthMiddleware(handler.HandleAvailability))
	http.HandleFunc("/user/working-hours", handler.AuthMiddleware(handler.HandleWorkingHours))
	http.HandleFunc("/ws", handler.AuthMiddleware(handler.HandleWebSocket))
	return handler
}

// buildProviders registers a calendar provider for every platform whose
// OAuth credentials are configured. Running without any is fine; the
// scheduler then plans purely around the user's own tasks.
func buildProviders(accountRepo *db.AccountRepository) []calendar.Provider {
	var providers []calendar.Provider

	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		cfg := &oauth2.Config{
			ClientID:     id,
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
			Scopes: []string{
				"https://www.googleapis.com/auth/calendar.events",
				"https://www.googleapis.com/auth/calendar.readonly",
			},
			Endpoint: google.Endpoint,
		}
		providers = append(providers, calendar.NewGoogleProvider(cfg, accountRepo))
	}

	if id := os.Getenv("MICROSOFT_CLIENT_ID"); id != "" {
		providers = append(providers, calendar.NewMicrosoftProvider(
			accountRepo,
			id,
			os.Getenv("MICROSOFT_CLIENT_SECRET"),
			os.Getenv("MICROSOFT_TENANT_ID"),
		))
	}
	return providers
}

func initServer() *http.Server {
	return &http.Server{
		Addr: ":" + os.Getenv("SERVER_PORT"),
	}
}

func startServer(server *http.Server) {
	log.Printf("Starting day planner server on :%s", os.Getenv("SERVER_PORT"))

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
