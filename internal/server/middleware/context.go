package middleware

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/1145-am/orggraph/internal/storage"
	"github.com/1145-am/orggraph/pkg/ai"
	"github.com/1145-am/orggraph/pkg/cache"
	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/query"
	"github.com/1145-am/orggraph/pkg/search"
)

// App bundles the shared handles every request handler needs.
type App struct {
	DBConn       *pgxpool.Pool
	Queue        *amqp091.Channel
	Graph        *graphstore.Store
	Cache        *cache.Cache
	Engine       *query.Engine
	Searcher     *search.Searcher
	Embedder     ai.EmbeddingClient
	Feedback     *storage.FeedbackStore
	Imports      *storage.DataImportLog
	Watches      *storage.WatchStore
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
