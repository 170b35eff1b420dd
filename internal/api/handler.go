package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/logging"
	"github.com/devricklin/feishu-request-relay/internal/service"
)

const defaultListLimit = 20

// Relay is the part of the relay service exposed over HTTP
type Relay interface {
	HandleEvent(ctx context.Context, ev *domain.RawEvent) (*service.EventResult, error)
	GetLink(ctx context.Context, requestID string) (*domain.Link, error)
	ListLinks(ctx context.Context, senderID string, status domain.LinkStatus, limit int) ([]*domain.Link, error)
	HandleStaffActionByRequest(ctx context.Context, requestID string, outcome domain.Outcome, ackTo domain.Location) (*service.ActionResult, error)
	HandleStaffReplyByRequest(ctx context.Context, requestID, content string, ackTo domain.Location) (*service.ReplyResult, error)
}

// Server provides the HTTP API used by the MCP tools and other transports
type Server struct {
	relay    Relay
	registry *prometheus.Registry
	log      *logrus.Entry

	router *gin.Engine
	server *http.Server
	addr   string
}

// NewServer creates a new API server. registry may be nil to disable /metrics.
func NewServer(relay Relay, registry *prometheus.Registry, addr string, log logging.Logger) *Server {
	s := &Server{
		relay:    relay,
		registry: registry,
		log:      log.WithField("component", "api"),
		addr:     addr,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	api.POST("/events", s.handleEvent)
	api.GET("/links", s.handleListLinks)
	api.GET("/links/:request_id", s.handleGetLink)
	api.POST("/links/:request_id/resolve", s.handleResolve)
	api.POST("/links/:request_id/reply", s.handleReply)

	return router
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithField("addr", s.addr).Info("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logging.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP request")
	}
}

// ============ Event Handlers ============

func (s *Server) handleEvent(c *gin.Context) {
	var ev domain.RawEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid event: " + err.Error()})
		return
	}
	if !ev.IsStaff() && !isSubmissionKind(ev.Kind) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown event kind " + strconv.Quote(string(ev.Kind))})
		return
	}
	if ev.IsStaff() && ev.Forward.IsZero() && ev.RequestID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "staff events need forward or request_id"})
		return
	}
	if ev.Kind == domain.EventStaffAction && !ev.Outcome.Valid() {
		outcome, err := domain.ParseOutcome(string(ev.Outcome))
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		ev.Outcome = outcome
	}

	res, err := s.relay.HandleEvent(c.Request.Context(), &ev)
	if err != nil {
		s.log.WithError(err).WithField("kind", string(ev.Kind)).Error("Failed to handle event")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, EventResponse{
		Submission: newSubmissionResponse(res.Submission),
		Action:     newActionResponse(res.Action),
		Reply:      newReplyResponse(res.Reply),
	})
}

func isSubmissionKind(kind domain.EventKind) bool {
	return kind == domain.EventText || kind == domain.EventMedia || kind == domain.EventPart
}

// ============ Link Handlers ============

func (s *Server) handleGetLink(c *gin.Context) {
	link, err := s.relay.GetLink(c.Request.Context(), c.Param("request_id"))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "request not found"})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewLinkResponse(link))
}

func (s *Server) handleListLinks(c *gin.Context) {
	limit := defaultListLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	var status domain.LinkStatus
	if st := c.Query("status"); st != "" {
		parsed, err := domain.ParseLinkStatus(st)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		status = parsed
	}

	links, err := s.relay.ListLinks(c.Request.Context(), c.Query("sender_id"), status, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := LinksResponse{Links: make([]*LinkResponse, 0, len(links))}
	for _, l := range links {
		resp.Links = append(resp.Links, NewLinkResponse(l))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleResolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "outcome is required"})
		return
	}
	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := s.relay.HandleStaffActionByRequest(c.Request.Context(), c.Param("request_id"), outcome, domain.Location{})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(routingStatus(res.Routing), newActionResponse(res))
}

func (s *Server) handleReply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
		return
	}

	res, err := s.relay.HandleStaffReplyByRequest(c.Request.Context(), c.Param("request_id"), req.Content, domain.Location{})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(routingStatus(res.Routing), newReplyResponse(res))
}

// routingStatus maps a routing result to an HTTP status
func routingStatus(r *domain.RoutingResult) int {
	if r == nil {
		return http.StatusInternalServerError
	}
	switch r.Kind {
	case domain.Unrouted:
		return http.StatusNotFound
	case domain.AlreadyHandled:
		return http.StatusConflict
	}
	return http.StatusOK
}

// ============ Helpers ============

func (s *Server) writeError(c *gin.Context, err error) {
	s.log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
