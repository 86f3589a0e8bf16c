package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
	"github.com/BrandonDHaskell/budgetbot/internal/telegram"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// RecordReader is the read side of the workflow exposed over HTTP.
type RecordReader interface {
	Status(ctx context.Context, id int64) (types.ExpenseRecord, error)
	Unsettled(ctx context.Context) ([]types.ExpenseRecord, error)
}

type Dependencies struct {
	Logger  *zap.Logger
	Addr    string
	Records RecordReader

	// Updates receives webhook deliveries; nil disables the webhook route.
	Updates       telegram.UpdateHandler
	WebhookSecret string
}

type Server struct {
	httpServer    *http.Server
	logger        *zap.Logger
	records       RecordReader
	updates       telegram.UpdateHandler
	webhookSecret string
}

func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:        logger.Named("http"),
		records:       d.Records,
		updates:       d.Updates,
		webhookSecret: d.WebhookSecret,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.updates != nil {
		r.Post("/telegram/webhook", s.handleWebhook)
	}
	r.Route("/v1/records", func(r chi.Router) {
		r.Get("/unsettled", s.handleUnsettled)
		r.Get("/{id}", s.handleRecord)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret != "" {
		got := r.Header.Get(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "bad_secret", "secret token mismatch")
			return
		}
	}

	var u telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	// Telegram retries until it sees a 2xx, so the handler outlives a
	// dropped connection.
	s.updates.HandleUpdate(context.WithoutCancel(r.Context()), u)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "record id must be a positive integer")
		return
	}

	rec, err := s.records.Status(r.Context(), id)
	if err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		s.logger.Error("record lookup failed", zap.Int64("record_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, newRecordView(rec))
}

func (s *Server) handleUnsettled(w http.ResponseWriter, r *http.Request) {
	recs, err := s.records.Unsettled(r.Context())
	if err != nil {
		s.logger.Error("unsettled lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	out := make([]recordView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, newRecordView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}
