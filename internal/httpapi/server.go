package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quanla93/solar-monitoring-system/internal/cache"
	"github.com/quanla93/solar-monitoring-system/internal/model"
	"github.com/quanla93/solar-monitoring-system/internal/parser"
	"github.com/quanla93/solar-monitoring-system/internal/store"
)

type RealtimeReader interface {
	Get(ctx context.Context, deviceID string) (*model.MetricRecord, error)
}

type HistoryQuerier interface {
	Query(ctx context.Context, q store.HistoryQuery) (store.Page, error)
}

type SyncTrigger interface {
	ProcessDataPipeline(ctx context.Context) model.SyncRun
}

type StagingSaver interface {
	Save(ctx context.Context, rec *store.StagingRecord) error
}

type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Server exposes the administrative surface: realtime and history reads, the
// synchronous sync trigger, staging ingestion and bus publishing.
type Server struct {
	realtime RealtimeReader
	history  HistoryQuerier
	sync     SyncTrigger
	staging  StagingSaver
	bus      Publisher
	topic    string
}

func New(realtime RealtimeReader, history HistoryQuerier, sync SyncTrigger, staging StagingSaver, bus Publisher, topic string) *Server {
	return &Server{realtime: realtime, history: history, sync: sync, staging: staging, bus: bus, topic: topic}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/realtime/{deviceID}", s.handleRealtime)
	r.Get("/api/history", s.handleHistory)
	r.Post("/api/sync", s.handleSync)
	r.Post("/api/ingest", s.handleIngest)
	r.Post("/api/publish", s.handlePublish)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	rec, err := s.realtime.Get(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, cache.ErrUnavailable) {
			http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
			return
		}
		slog.Error("realtime read failed", "device_id", deviceID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "no metrics for device", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := parseTime(q.Get("start"))
	if err != nil {
		http.Error(w, "invalid or missing start", http.StatusBadRequest)
		return
	}
	end, err := parseTime(q.Get("end"))
	if err != nil {
		http.Error(w, "invalid or missing end", http.StatusBadRequest)
		return
	}

	hq := store.HistoryQuery{
		DeviceID: strings.TrimSpace(q.Get("device_id")),
		Start:    start,
		End:      end,
		Size:     20,
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		hq.Page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid size", http.StatusBadRequest)
			return
		}
		hq.Size = n
	}

	page, err := s.history.Query(r.Context(), hq)
	if err != nil {
		slog.Error("history query failed", "error", err)
		http.Error(w, "history store error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	slog.Info("manual sync triggered")
	run := s.sync.ProcessDataPipeline(r.Context())
	writeJSON(w, http.StatusOK, run)
}

type ingestRequest struct {
	DeviceID    string `json:"device_id"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	ct := strings.ToUpper(strings.TrimSpace(req.ContentType))
	if ct == "" {
		if strings.HasPrefix(strings.TrimSpace(req.Content), "<") {
			ct = "XML"
		} else {
			ct = "JSON"
		}
	}
	if ct != "JSON" && ct != "XML" {
		http.Error(w, "content_type must be JSON or XML", http.StatusBadRequest)
		return
	}

	rec := &store.StagingRecord{DeviceID: req.DeviceID, Content: req.Content, ContentType: ct}
	if err := s.staging.Save(r.Context(), rec); err != nil {
		slog.Error("staging save failed", "error", err)
		http.Error(w, "staging store error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(strings.TrimSpace(string(payload))) == 0 {
		http.Error(w, "payload is required", http.StatusBadRequest)
		return
	}
	if err := s.bus.Publish(s.topic, payload); err != nil {
		slog.Error("bus publish failed", "topic", s.topic, "error", err)
		http.Error(w, "publish failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"published": true, "topic": s.topic})
}

// parseTime accepts the payload timestamp layout or RFC3339.
func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time")
	}
	if ts, err := time.Parse(parser.TimeLayout, v); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
