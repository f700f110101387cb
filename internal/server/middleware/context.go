package middleware

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/clearbridge/oppgraph/internal/config"
)

// App carries the shared process-level dependencies into request
// handlers.
type App struct {
	DBConn *pgxpool.Pool
	Queue  *amqp091.Channel
	Config *config.Config
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(
	db *pgxpool.Pool,
	queue *amqp091.Channel,
	cfg *config.Config,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			app := &App{
				DBConn: db,
				Queue:  queue,
				Config: cfg,
			}
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
