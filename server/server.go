// Package server exposes the journal to browser clients: a JSON API and a
// websocket pushing state changes and analysis progress.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	journal "github.com/etnz/stockjournal"
	"github.com/etnz/stockjournal/ai"
	"github.com/etnz/stockjournal/store"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server holds the dependencies of the handlers.
type Server struct {
	Store    *store.Store
	Analyst  *ai.Analyst           // nil when no API key is configured
	Prices   journal.PriceProvider // nil disables refresh
	Exchange string
	Hub      *Hub
	Now      func() time.Time
	log      zerolog.Logger
}

// New creates a server. Analyst and prices may be nil.
func New(s *store.Store, analyst *ai.Analyst, prices journal.PriceProvider, exchange string, logger zerolog.Logger) *Server {
	return &Server{
		Store:    s,
		Analyst:  analyst,
		Prices:   prices,
		Exchange: exchange,
		Hub:      NewHub(logger),
		Now:      time.Now,
		log:      logger.With().Str("component", "server").Logger(),
	}
}

// Cors allows the SPA to be served from another origin.
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// logger logs each request through zerolog.
func (s *Server) logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// Router returns the gin engine serving the API.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logger(), Cors())

	api := r.Group("/api")
	{
		api.GET("/state", s.getState)
		api.POST("/positions", s.addPosition)
		api.GET("/positions/:symbol", s.getPosition)
		api.DELETE("/positions/:symbol", s.removePosition)
		api.POST("/positions/:symbol/transactions", s.recordTransaction)
		api.DELETE("/portfolio", s.clearPortfolio)
		api.PUT("/cash", s.setCash)
		api.PUT("/strategy", s.setStrategy)
		api.PUT("/theme", s.setTheme)
		api.POST("/import", s.importSheet)
		api.GET("/export.csv", s.exportCSV)
		api.POST("/refresh", s.refresh)
		api.GET("/analyses", s.listAnalyses)
		api.POST("/analyses", s.analyze)
		api.GET("/analyses/:id", s.getAnalysis)
		api.POST("/rebalance", s.rebalance)
		api.GET("/project", s.project)
		api.GET("/export.pdf", s.exportPDF)
		api.GET("/report.html", s.reportHTML)
	}
	r.GET("/ws", s.Hub.ServeWS)
	return r
}

// ListenAndServe runs the hub and the http server on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Hub.Run(ctx, 30*time.Second)

	srv := &http.Server{Addr: addr, Handler: s.Router()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// status maps domain errors to http status codes.
func status(err error) int {
	switch {
	case errors.Is(err, journal.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, journal.ErrInsufficientShares),
		errors.Is(err, journal.ErrInvalidQuantity),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ai.ErrMissingAPIKey):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func fail(c *gin.Context, err error) {
	c.JSON(status(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
