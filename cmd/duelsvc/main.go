package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/jonboulle/clockwork"

	config "github.com/quizwire/duel-services/configs"
	"github.com/quizwire/duel-services/internal/db"
	"github.com/quizwire/duel-services/internal/duelsvc/broker"
	duelconfig "github.com/quizwire/duel-services/internal/duelsvc/config"
	pgdb "github.com/quizwire/duel-services/internal/duelsvc/db"
	handlers "github.com/quizwire/duel-services/internal/duelsvc/handlers"
	"github.com/quizwire/duel-services/internal/duelsvc/service"
	"github.com/quizwire/duel-services/internal/duelsvc/store"
	nats "github.com/quizwire/duel-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "duel"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := duelconfig.Load()

	// mongo holds the quiz banks
	mongoDB, cancelMongo, err := db.ConnectToDB()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer cancelMongo()
	log.Printf("mongo connection established successfully")

	quizStore := store.NewQuizStore(mongoDB)
	quizService := service.NewQuizService(quizStore)

	// the match registry rides on postgres when configured, otherwise it
	// stays in process memory (single node)
	var registry service.MatchRegistry
	if os.Getenv("POSTGRES_URL") != "" {
		dbpool, err := pgdb.Connect()
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer pgdb.ClosePool()
		log.Printf("pg connection established successfully")
		registry = store.NewMatchStore(dbpool)
	} else {
		log.Printf("POSTGRES_URL not set, using in-memory match registry")
		registry = store.NewMemoryMatchStore()
	}

	// Connect to NATS
	n, err := nats.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	clock := clockwork.NewRealClock()

	// broker carries broadcasts and presence checks; the engine broadcasts
	// through it, so it learns about the engine after construction
	b := broker.NewBroker(n.Conn, cfg)
	engine := service.NewRoundEngine(registry, b, cfg, clock)
	b.Engine = engine

	matchmaker := service.NewMatchmaker(registry, quizService, b, b, cfg, clock)

	// consume lifecycle events from the socket service
	sub, err := b.SubscribeSocketService(nats.TopicSocketService)
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(0)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(matchmaker, engine, quizService, cfg)
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("DUEL_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
