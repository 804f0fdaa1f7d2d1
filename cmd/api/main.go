package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ptshop/ptshop/internal/carts"
	"github.com/ptshop/ptshop/internal/config"
	"github.com/ptshop/ptshop/internal/httpx"
	kafkax "github.com/ptshop/ptshop/internal/kafka"
	"github.com/ptshop/ptshop/internal/mongox"
	"github.com/ptshop/ptshop/internal/orders"
	"github.com/ptshop/ptshop/internal/portone"
	"github.com/ptshop/ptshop/internal/products"
	"github.com/ptshop/ptshop/internal/redisx"
	"github.com/ptshop/ptshop/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := mongox.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer func() { _ = mongox.Disconnect(context.Background(), db) }()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	pStatus.Start(ctx)

	// Gateway verifier
	gateway := portone.NewClient(cfg.PortOneBaseURL, cfg.PortOneAPIKey, cfg.PortOneAPISecret)
	if !gateway.Configured() {
		log.Printf("WARNING: portone credentials missing, order creation will fail until IMP_REST_API_KEY/IMP_REST_API_SECRET are set")
	}

	// Repos & indexes
	userRepo := users.NewRepo(db)
	productRepo := products.NewRepo(db)
	cartRepo := carts.NewRepo(db)
	orderRepo := orders.NewRepo(db, userRepo, productRepo)
	for _, ensure := range []func(context.Context) error{
		userRepo.EnsureIndexes, productRepo.EnsureIndexes, cartRepo.EnsureIndexes, orderRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			log.Fatalf("ensure indexes: %v", err)
		}
	}

	// Router & handlers
	auth := &httpx.Auth{Secret: cfg.JWTSecret}
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{
		Repo:          orderRepo,
		Verifier:      gateway,
		CreatedEvents: pCreated,
		StatusEvents:  pStatus,
		Redis:         rdb,
		Auth:          auth,
		Service:       cfg.ServiceName,
	}).Register(router)
	(&httpx.UsersHandler{Repo: userRepo, Auth: auth}).Register(router)
	(&httpx.ProductsHandler{Repo: productRepo, Auth: auth}).Register(router)
	(&httpx.CartsHandler{Repo: cartRepo}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pCreated.Close()
	pStatus.Close()
	pCreated.WaitClosed()
	pStatus.WaitClosed()
}
