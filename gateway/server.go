// Package gateway serves the telephony HTTP surface: TwiML webhooks, the
// media stream WebSocket, health, and metrics.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	twilioclient "github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"

	"github.com/cadencevoice/callpipe/live"
	"github.com/cadencevoice/callpipe/oracle"
	"github.com/cadencevoice/callpipe/postcall"
	"github.com/cadencevoice/callpipe/session"
	"github.com/cadencevoice/callpipe/stt"
	"github.com/cadencevoice/callpipe/tts"
)

// Config wires the server's collaborators.
type Config struct {
	Registry   *session.Registry
	STT        stt.Provider
	STTSession stt.SessionConfig
	Dispatcher *tts.Dispatcher
	Oracle     oracle.Oracle
	Postcall   *postcall.Runner

	// StreamURL is the wss URL Twilio connects media streams to.
	StreamURL string

	// TwilioAuthToken enables webhook signature validation when set.
	TwilioAuthToken string
	// PublicHost is the host Twilio signed its requests against.
	PublicHost string

	Logger *slog.Logger
}

// Server is the HTTP front of the pipeline.
type Server struct {
	cfg      Config
	log      *slog.Logger
	engine   *gin.Engine
	metrics  *CallMetrics
	upgrader websocket.Upgrader
}

// New builds the router and registers all routes.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:     cfg,
		log:     log,
		engine:  engine,
		metrics: NewCallMetrics(reg),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Twilio opens the stream server-to-server.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	webhook := engine.Group("/", s.validateTwilioSignature())
	webhook.POST("/voice", s.handleVoice)
	webhook.POST("/call-status", s.handleCallStatus)

	engine.GET("/media", s.handleMedia)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return s
}

// Handler exposes the router for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then shuts down within grace.
func (s *Server) Run(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("gateway listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// validateTwilioSignature rejects webhook requests whose X-Twilio-Signature
// does not match. Disabled when no auth token is configured.
func (s *Server) validateTwilioSignature() gin.HandlerFunc {
	if s.cfg.TwilioAuthToken == "" {
		return func(*gin.Context) {}
	}
	validator := twilioclient.NewRequestValidator(s.cfg.TwilioAuthToken)
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		params := make(map[string]string, len(c.Request.PostForm))
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		url := "https://" + s.cfg.PublicHost + c.Request.URL.RequestURI()
		sig := c.GetHeader("X-Twilio-Signature")
		if !validator.Validate(url, params, sig) {
			s.log.Warn("rejected webhook with bad signature", "path", c.Request.URL.Path)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
	}
}

// handleVoice answers Twilio's voice webhook with TwiML that connects the
// call to the media stream. Lead context arrives as query parameters on the
// webhook URL and is forwarded as stream custom parameters.
func (s *Server) handleVoice(c *gin.Context) {
	callSID := c.PostForm("CallSid")
	from := c.PostForm("From")
	direction := "inbound"
	if d := c.Query("direction"); d != "" {
		direction = d
	}

	params := []twiml.Element{
		&twiml.VoiceParameter{Name: "direction", Value: direction},
		&twiml.VoiceParameter{Name: "phone", Value: from},
	}
	for _, key := range []string{"lead_id", "lead_name", "lead_email", "agent_name", "property_address", "source"} {
		if v := c.Query(key); v != "" {
			params = append(params, &twiml.VoiceParameter{Name: key, Value: v})
		}
	}

	stream := &twiml.VoiceStream{
		Url:           s.cfg.StreamURL,
		InnerElements: params,
	}
	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}

	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		s.log.Error("build twiml failed", "call_sid", callSID, "error", err)
		c.String(http.StatusInternalServerError, "unable to handle call")
		return
	}

	s.log.Info("voice webhook answered", "call_sid", callSID, "direction", direction)
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, doc)
}

// handleCallStatus finalizes the session when Twilio reports the call over.
func (s *Server) handleCallStatus(c *gin.Context) {
	callSID := c.PostForm("CallSid")
	status := c.PostForm("CallStatus")
	if callSID == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	switch status {
	case "completed", "failed", "busy", "no-answer", "canceled":
	default:
		// Interim statuses (ringing, in-progress) need no action.
		c.Status(http.StatusOK)
		return
	}

	duration := time.Duration(0)
	if secs, err := strconv.Atoi(c.PostForm("CallDuration")); err == nil {
		duration = time.Duration(secs) * time.Second
	}

	if err := s.cfg.Postcall.Finalize(c.Request.Context(), callSID, time.Now(), duration); err != nil {
		s.log.Error("post-call finalize failed", "call_sid", callSID, "status", status, "error", err)
		// 200 regardless: Twilio retries on non-2xx and the pipeline
		// retries internally on the next status callback.
	}
	c.Status(http.StatusOK)
}

// handleMedia upgrades the connection and runs the stream handler for the
// call's full duration.
func (s *Server) handleMedia(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("media upgrade failed", "error", err)
		return
	}

	handler := live.NewHandler(conn, live.Config{
		Registry:   s.cfg.Registry,
		STT:        s.cfg.STT,
		STTSession: s.cfg.STTSession,
		Dispatcher: s.cfg.Dispatcher,
		Oracle:     s.cfg.Oracle,
		Metrics:    s.metrics,
		Logger:     s.log,
	})
	if err := handler.Run(c.Request.Context()); err != nil {
		s.log.Warn("media stream ended with error", "error", err)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"active_calls": s.cfg.Registry.Len(),
	})
}
