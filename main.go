package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"drawboardgo/internal/config"
	"drawboardgo/internal/database/db_client"
	"drawboardgo/internal/http/http_server"
	"drawboardgo/internal/redis/redis_client"
	"drawboardgo/internal/services/canvas"
	"drawboardgo/internal/services/room"
	"drawboardgo/internal/syncdb"
	"drawboardgo/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err = redis_client.NewBoardsClient(ctx, cfg)
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client + schema bootstrap
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	if err := db_client.EnsureSchema(ctx, pgDb); err != nil {
		Log.Fatal("pg-schema", zap.Error(err))
	}

	// 5. Services: room membership store + canvas operation log
	roomService := room.NewRoomService(redisClient, pgDb)
	canvasService := canvas.NewCanvasService(redisClient, cfg.CanvasMaxOps)

	// 6. Background: 10 s canvas synchroniser -> Postgres
	syncdb.Run(ctx, redisClient, pgDb)

	// 7. WebSockets hub + room event relay
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, redisClient, roomService, canvasService)

	// 8. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, roomService, canvasService)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
