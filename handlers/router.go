package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kevinaaaquil/library/backend/auth"
	"github.com/kevinaaaquil/library/backend/config"
	"github.com/kevinaaaquil/library/backend/middleware"
	"github.com/kevinaaaquil/library/backend/observability"
	"github.com/kevinaaaquil/library/backend/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Config  *config.Config
	Log     *slog.Logger
	Tokens  *auth.Manager
	Auth    *service.AuthService
	Library *service.LibraryService
	// Prom and Gatherer are optional; without them /metrics is not mounted.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

func NewRouter(d RouterDeps) http.Handler {
	authHandler := &AuthHandler{Auth: d.Auth, Log: d.Log}
	booksHandler := &BooksHandler{Library: d.Library, Log: d.Log}
	usersHandler := &UsersHandler{Library: d.Library, Log: d.Log}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.Config.CORSOrigins))
	if d.Prom != nil {
		r.Use(d.Prom.Middleware)
		booksHandler.Borrows = d.Prom
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/token", authHandler.Token)
		r.Post("/logout", authHandler.Logout)
		r.With(middleware.Auth(d.Tokens)).Delete("/delete", authHandler.Delete)
	})

	r.Route("/books", func(r chi.Router) {
		r.Use(middleware.Auth(d.Tokens))
		r.Get("/all", booksHandler.List)
		r.Post("/add", booksHandler.Add)
		r.Patch("/review/{id}", booksHandler.Review)
		r.Patch("/like/{id}", booksHandler.Like)
		r.Patch("/unlike/{id}", booksHandler.Unlike)
		r.Patch("/updatestock/{id}", booksHandler.UpdateStock)
		r.Delete("/delete/{id}", booksHandler.Delete)
		r.Patch("/borrow/{id}", booksHandler.Borrow)
		r.Put("/cover/{id}", booksHandler.UploadCover)
		r.Get("/cover/{id}", booksHandler.CoverURL)
		r.Get("/{id}", booksHandler.Get)
	})

	r.Route("/user", func(r chi.Router) {
		r.Use(middleware.Auth(d.Tokens))
		r.Get("/profile/{id}", usersHandler.Profile)
	})

	return r
}
