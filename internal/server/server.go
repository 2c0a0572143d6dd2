package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/1145-am/orggraph/internal/clients"
	"github.com/1145-am/orggraph/internal/queue"
	mid "github.com/1145-am/orggraph/internal/server/middleware"
	"github.com/1145-am/orggraph/internal/storage"
	"github.com/1145-am/orggraph/internal/util"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/query"
	"github.com/1145-am/orggraph/pkg/search"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := storage.Migrate(""); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	conn, err := storage.NewPool(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	graph := clients.NewGraphStore(ctx)
	defer graph.Close(context.Background())
	cacheClient := clients.NewCache()
	defer cacheClient.Close()
	embedder := clients.NewEmbedder()
	index := clients.NewSearchIndex()

	app := &mid.App{
		DBConn:       conn,
		Queue:        ch,
		Graph:        graph,
		Cache:        cacheClient,
		Engine:       query.NewEngine(graph, cacheClient),
		Searcher:     search.NewSearcher(index, embedder),
		Embedder:     embedder,
		Feedback:     storage.NewFeedbackStore(conn),
		Imports:      storage.NewDataImportLog(conn),
		Watches:      storage.NewWatchStore(conn),
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
