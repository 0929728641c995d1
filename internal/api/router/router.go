// Package router wires the HTTP surface.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calebwren/portfolio-ai/internal/chat"
	"github.com/calebwren/portfolio-ai/internal/http/middleware"
	"github.com/calebwren/portfolio-ai/internal/portfolio"
	"github.com/calebwren/portfolio-ai/pkg/logging"
)

// Deps carries everything the router mounts.
type Deps struct {
	Chat      *chat.Handler
	Portfolio *portfolio.Handler
	Logger    *logging.Logger
	Registry  *prometheus.Registry

	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New assembles the chi router.
func New(d Deps) http.Handler {
	if d.Chat == nil {
		panic("router: chat handler required")
	}
	if d.Portfolio == nil {
		panic("router: portfolio handler required")
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.CORS(d.CORSAllowedOrigins))

	r.Get("/health", handleHealth)
	if d.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		if d.RateLimitPerSecond > 0 {
			api.Use(middleware.RateLimit(d.RateLimitPerSecond, d.RateLimitBurst))
		}
		api.Post("/chat", d.Chat.HandleChat)
		api.Post("/speech", d.Chat.HandleSpeech)
		api.Get("/projects", d.Portfolio.ListProjects)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
