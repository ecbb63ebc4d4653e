package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/productgenius/internal/catalog"
	"github.com/digkill/productgenius/internal/service"
)

// Notifier delivers a short message to a business user, if they have an open session.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, text string) error
}

type Authenticator interface {
	IsAdmin(email, password string) bool
}

type Server struct {
	addr     string
	log      *slog.Logger
	auth     Authenticator
	admin    *service.AdminService
	notifier Notifier
	router   *chi.Mux
}

func NewServer(addr string, log *slog.Logger, auth Authenticator, admin *service.AdminService, notifier Notifier, metricsHandler http.Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:     addr,
		log:      log,
		auth:     auth,
		admin:    admin,
		notifier: notifier,
		router:   r,
	}
	r.Get("/healthz", s.handleHealth)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Get("/packages", s.handleListPackages)
		protected.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Get("/{id}", s.handleGetUser)
			r.Patch("/{id}", s.handleUpdateUser)
			r.Delete("/{id}", s.handleDeleteUser)
			r.Post("/{id}/approve", s.handleApprove)
			r.Get("/{id}/purchases", s.handlePurchases)
		})
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin api listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type packageView struct {
	Code         string `json:"code"`
	Title        string `json:"title"`
	Credits      int    `json:"credits"`
	ValidityDays int    `json:"validity_days"`
	Purchasable  bool   `json:"purchasable"`
}

func (s *Server) handleListPackages(w http.ResponseWriter, _ *http.Request) {
	out := make([]packageView, 0, len(catalog.All))
	for _, def := range catalog.All {
		out = append(out, packageView{
			Code:         string(def.Code),
			Title:        def.Title,
			Credits:      def.Credits,
			ValidityDays: int(def.Validity / (24 * time.Hour)),
			Purchasable:  def.Code.Purchasable(),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	filter := service.UserFilter{Query: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("pending"); raw != "" {
		pending, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "invalid pending flag", http.StatusBadRequest)
			return
		}
		filter.PendingOnly = pending
	}
	users, err := s.admin.List(r.Context(), filter)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.NewAccount
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user, err := s.admin.Create(r.Context(), req)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.admin.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var patch service.AccountPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	user, err := s.admin.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := s.admin.Approve(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	if s.notifier != nil {
		text := fmt.Sprintf("Your %s package is active: %d credits until %s.", user.Package, user.Credits, user.ExpiresAt.Format("2006-01-02"))
		if err := s.notifier.NotifyUser(r.Context(), id, text); err != nil {
			s.log.Warn("approval notification failed", "user_id", id, "err", err)
		}
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	records, err := s.admin.PurchaseHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !s.auth.IsAdmin(user, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="productgenius"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) serviceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.internalError(w, err)
		return
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("admin handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidPackage):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrPlanExpired):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateEmail), errors.Is(err, service.ErrAlreadyPending),
		errors.Is(err, service.ErrNotPending), errors.Is(err, service.ErrGenerationInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrGeneratorAuth), errors.Is(err, service.ErrGeneratorTransport),
		errors.Is(err, service.ErrNoImageReturned):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
