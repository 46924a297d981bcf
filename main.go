package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"broadcast-room/internal/archive"
	"broadcast-room/internal/config"
	"broadcast-room/internal/handlers"
	"broadcast-room/internal/middleware"
	"broadcast-room/internal/observability"
	"broadcast-room/internal/rabbitmq"
	"broadcast-room/internal/repositories"
	"broadcast-room/internal/room"
	"broadcast-room/internal/telemetry"
	"broadcast-room/internal/ws"
)

const serviceName = "broadcast-room"

func main() {
	cfg := config.Load()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	auditor := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, serviceName, cfg.Env)

	roomsCtx, stopRooms := context.WithCancel(context.Background())
	archiveCtx, stopArchive := context.WithCancel(context.Background())
	hub := ws.NewHub()
	opts := room.Options{
		Config:        cfg.Room,
		SweepInterval: cfg.SweepInterval,
		Transport:     hub,
		AuditorFor:    func(roomID string) room.Auditor { return auditor.ForRoom(roomID) },
	}

	var (
		history repositories.MessageRepository
		writer  *archive.Writer
		seeder  room.Seeder
	)
	database, err := connectArchive(cfg)
	if err != nil {
		log.Printf("archive disabled: %v", err)
	}
	if database != nil {
		history = repositories.NewMessageRepo(database)
		writer = archive.NewWriter(history, cfg.ArchiveQueue)
		opts.Archiver = writer
		seeder = writer
		go writer.Run(archiveCtx)
	}

	registry := room.NewRegistry(roomsCtx, opts, seeder, cfg.RoomLimits)
	registry.Get(cfg.DefaultRoomID)

	wsHandler := ws.NewHandler(hub, registry, cfg.DefaultRoomID, ws.Options{
		SendBuffer:   cfg.SendBuffer,
		WriteTimeout: cfg.WriteTimeout,
		PongTimeout:  cfg.PongTimeout,
	})
	roomHandler := handlers.NewRoomHandler(registry, history)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", roomHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/rooms", roomHandler.ListRooms)
	router.GET("/rooms/:room_id/messages", roomHandler.GetMessages)
	router.GET("/rooms/:room_id/online", roomHandler.GetOnline)
	router.GET("/ws", wsHandler.Handle)
	router.GET("/ws/rooms/:room_id", wsHandler.Handle)
	handlers.RegisterDebugRoutes(router, auditor, !cfg.IsProduction())

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Printf("room service listening port=%s default_room=%s", cfg.Port, cfg.DefaultRoomID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"room-service": func(ctx context.Context) error {
			log.Println("graceful shutdown initiated")
			err := srv.Shutdown(ctx)
			stopRooms()
			registry.Wait()
			stopArchive()
			if writer != nil {
				select {
				case <-writer.Done():
				case <-ctx.Done():
				}
			}
			if database != nil {
				_ = database.Close()
			}
			_ = publisher.Close()
			return errors.Join(err, shutdownTracing(ctx))
		},
	})

	exitCode := <-wait
	log.Printf("room service exited with code: %d", exitCode)
	os.Exit(exitCode)
}
