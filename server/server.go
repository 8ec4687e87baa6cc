package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/siherrmann/coursesearch"
	"github.com/siherrmann/coursesearch/model"
)

// DefaultSimilarityLimit is used by the similarity routes without a limit parameter
const DefaultSimilarityLimit = 10

// Searcher is the part of coursesearch.Searcher the routes need
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
	SearchDetailed(ctx context.Context, query string) ([]*model.RankedCourse, error)
	Similarities(ctx context.Context, strategyName string, query string, limit int) ([]*model.Similarity, error)
	SyncStatus() []coursesearch.SyncStatus
}

// Server serves the search routes over http
type Server struct {
	echo     *echo.Echo
	searcher Searcher
	logger   *slog.Logger
}

// NewServer creates the echo instance and registers all routes
func NewServer(searcher Searcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowMethods: []string{http.MethodGet},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("Request", slog.String("uri", v.URI), slog.Int("status", v.Status), slog.Duration("latency", v.Latency))
			return nil
		},
	}))

	s := &Server{
		echo:     e,
		searcher: searcher,
		logger:   logger,
	}

	e.GET("/health", s.health)
	e.GET("/search", s.search)
	e.GET("/search/detailed", s.searchDetailed)
	e.GET("/title_similarities", s.similarities("title"))
	e.GET("/content_similarities", s.similarities("content"))
	e.GET("/name_similarities", s.nameSimilarities)
	e.GET("/sync/status", s.syncStatus)

	return s
}

// Handler returns the http handler of all routes
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on address until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, address string) error {
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", slog.String("address", address))
		errs <- s.echo.Start(address)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Stopping server")
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "healthy")
}

func (s *Server) search(c echo.Context) error {
	query, err := queryParam(c)
	if err != nil {
		return err
	}

	ids, err := s.searcher.Search(c.Request().Context(), query)
	if err != nil {
		return s.searchError("search", err)
	}
	return c.JSON(http.StatusOK, ids)
}

func (s *Server) searchDetailed(c echo.Context) error {
	query, err := queryParam(c)
	if err != nil {
		return err
	}

	ranked, err := s.searcher.SearchDetailed(c.Request().Context(), query)
	if err != nil {
		return s.searchError("search detailed", err)
	}
	return c.JSON(http.StatusOK, ranked)
}

func (s *Server) similarities(strategyName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.respondSimilarities(c, strategyName)
	}
}

// nameSimilarities serves raw person distances, or dampened ones with dampened=true
func (s *Server) nameSimilarities(c echo.Context) error {
	strategyName := "person"
	if v := c.QueryParam("dampened"); v != "" {
		dampened, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "dampened must be a boolean")
		}
		if dampened {
			strategyName = "person_dampened"
		}
	}
	return s.respondSimilarities(c, strategyName)
}

func (s *Server) respondSimilarities(c echo.Context, strategyName string) error {
	query, err := queryParam(c)
	if err != nil {
		return err
	}

	limit := DefaultSimilarityLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	similarities, err := s.searcher.Similarities(c.Request().Context(), strategyName, query, limit)
	if err != nil {
		return s.searchError(strategyName+" similarities", err)
	}
	return c.JSON(http.StatusOK, similarities)
}

func (s *Server) syncStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.searcher.SyncStatus())
}

// queryParam returns the trimmed query parameter, blank queries are a bad request
func queryParam(c echo.Context) (string, error) {
	query := strings.TrimSpace(c.QueryParam("query"))
	if query == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "query parameter is required")
	}
	return query, nil
}

// searchError maps an empty query to 400, anything else is logged and hidden
func (s *Server) searchError(operation string, err error) error {
	if errors.Is(err, coursesearch.ErrEmptyQuery) {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter is required")
	}
	return s.internalError(operation, err)
}

// internalError logs err and hides it from the client
func (s *Server) internalError(operation string, err error) error {
	s.logger.Error("Request failed", slog.String("operation", operation), slog.String("error", err.Error()))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
