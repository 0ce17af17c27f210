package httpadapter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/PabloGalante/chatrelay/internal/app/conversation"
	"github.com/PabloGalante/chatrelay/internal/app/metrics"
)

type Server struct {
	conv     *conversation.Service
	analysis *metrics.Service
}

type Options struct {
	// ServiceName labels the HTTP spans.
	ServiceName string
	// Gatherer backs GET /metrics. Nil leaves the route out.
	Gatherer prometheus.Gatherer
}

func NewServer(conv *conversation.Service, analysis *metrics.Service, opts Options) http.Handler {
	s := &Server{conv: conv, analysis: analysis}
	if opts.ServiceName == "" {
		opts.ServiceName = "chatrelay"
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(opts.ServiceName),
		withRequestID(),
		withLogging(),
		withCORS(),
	)

	r.GET("/healthz", s.handleHealthz)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	chats := api.Group("/chat")
	chats.POST("/", s.handleCreateChat)
	chats.GET("/", s.handleListChats)
	chats.GET("/:chat_id", s.handleGetChat)

	msgs := api.Group("/message")
	msgs.POST("/", s.handleComplete)
	msgs.POST("/chat", s.handleCompleteWithContext)
	msgs.POST("/chat/:chat_id", s.handleStreamTurn)
	msgs.GET("/chat/:chat_id", s.handleListMessages)
	msgs.GET("/:message_id", s.handleGetMessage)

	api.GET("/metricas/:chat_id", s.handleAnalyze)

	return r
}
