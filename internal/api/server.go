// Package api exposes the verdict engine and track-record ledger over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"strategy-verdict-lab/internal/chain"
	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/export"
	"strategy-verdict-lab/internal/observability"
	"strategy-verdict-lab/internal/perfmetrics"
	"strategy-verdict-lab/internal/service"
	"strategy-verdict-lab/internal/storage"
)

// Config holds the server's tunables.
type Config struct {
	APIKeys        []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server wires the HTTP routes to the engine and ledger.
type Server struct {
	verifier        *service.Verifier
	chain           *chain.Chain
	checkpointer    *chain.Checkpointer
	chainVerifier   *chain.Verifier
	exporter        *export.Exporter
	events          storage.EventStore
	checkpointStore storage.CheckpointStore
	instances       storage.InstanceStore
	snapshots       storage.MetricSnapshotStore
	logger          *log.Logger
	cfg             Config

	startedAt       time.Time
	verdictRuns     atomic.Int64
	eventsAppended  atomic.Int64
	appendConflicts atomic.Int64
}

// NewServer creates a Server. instances and snapshots may be nil when no
// registry or analytics store is configured.
func NewServer(verifier *service.Verifier, c *chain.Chain, checkpointer *chain.Checkpointer, chainVerifier *chain.Verifier, exporter *export.Exporter, events storage.EventStore, checkpoints storage.CheckpointStore, instances storage.InstanceStore, snapshots storage.MetricSnapshotStore, logger *log.Logger, cfg Config) *Server {
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}
	return &Server{
		verifier:        verifier,
		chain:           c,
		checkpointer:    checkpointer,
		chainVerifier:   chainVerifier,
		exporter:        exporter,
		events:          events,
		checkpointStore: checkpoints,
		instances:       instances,
		snapshots:       snapshots,
		logger:          logger,
		cfg:             cfg,
		startedAt:       time.Now(),
	}
}

// Handler builds the router with all routes and middleware attached.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.Handle("/metrics", observability.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(apiKeyMiddleware(s.cfg.APIKeys))
	api.Use(rateLimitMiddleware(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))

	api.HandleFunc("/verify", s.handleVerify).Methods("POST")
	api.HandleFunc("/track-record/{instanceID}/events", s.handleAppendEvent).Methods("POST")
	api.HandleFunc("/track-record/{instanceID}/verify", s.handleVerifyChain).Methods("GET")
	api.HandleFunc("/track-record/{instanceID}/metrics", s.handleInstanceMetrics).Methods("GET")
	api.HandleFunc("/track-record/{instanceID}/export", s.handleExport).Methods("GET")

	r.Use(metricsMiddleware())
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoveryMiddleware(s.logger))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"uptimeSeconds":   int64(time.Since(s.startedAt).Seconds()),
		"verdictRuns":     s.verdictRuns.Load(),
		"eventsAppended":  s.eventsAppended.Load(),
		"appendConflicts": s.appendConflicts.Load(),
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json body"})
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
		return
	}

	out, err := s.verifier.Verify(r.Context(), req.ToInput())
	if err != nil {
		if errors.Is(err, service.ErrThresholdsMissing) {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
			return
		}
		s.logger.Printf("verify %s@%s: %v", req.StrategyID, req.StrategyVersion, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	s.verdictRuns.Add(1)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAppendEvent(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["instanceID"]

	var req AppendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json body"})
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
		return
	}

	e, err := s.chain.Append(r.Context(), instanceID, req.EventType, req.Payload, req.PrevHash)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			s.appendConflicts.Add(1)
			observability.RecordAppendConflict()
			head, nextSeq, headErr := s.chain.Head(r.Context(), instanceID)
			if headErr != nil {
				s.logger.Printf("refresh head for %s: %v", instanceID, headErr)
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
				return
			}
			writeJSON(w, http.StatusConflict, ConflictResponse{
				Error:        "stale head: retry with current head",
				CurrentHead:  head,
				NextSequence: nextSeq,
			})
		case errors.Is(err, storage.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			s.logger.Printf("append event for %s: %v", instanceID, err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	s.eventsAppended.Add(1)
	observability.RecordEventAppended(e.EventType)

	if s.checkpointer != nil {
		cut, err := s.checkpointer.MaybeCheckpoint(r.Context(), instanceID)
		if err != nil {
			s.logger.Printf("checkpoint %s: %v", instanceID, err)
		}
		if len(cut) > 0 {
			observability.RecordCheckpointCut(len(cut))
		}
	}

	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["instanceID"]
	started := time.Now()

	res, err := s.chainVerifier.Verify(r.Context(), instanceID)
	if err != nil {
		s.logger.Printf("verify chain %s: %v", instanceID, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	cpValid, reports, err := s.chainVerifier.VerifyCheckpoints(r.Context(), instanceID)
	if err != nil {
		s.logger.Printf("verify checkpoints %s: %v", instanceID, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := TrackRecordVerifyResponse{
		InstanceID: instanceID,
		Chain:      res,
		Checkpoints: CheckpointsSummary{
			Count:    len(reports),
			Verified: cpValid,
		},
		Verified: res.Valid && cpValid,
	}
	if s.checkpointStore != nil {
		if latest, err := s.checkpointStore.Latest(r.Context(), instanceID); err == nil {
			resp.Checkpoints.LastHMAC = latest.HMAC
		}
	}
	if s.instances != nil {
		if inst, err := s.instances.GetByID(r.Context(), instanceID); err == nil {
			resp.EAName = inst.EAName
			resp.Mode = inst.Mode
		}
	}

	observability.RecordChainVerification(resp.Verified, time.Since(started).Seconds())
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInstanceMetrics(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["instanceID"]

	max, err := s.events.MaxSequence(r.Context(), instanceID)
	if err != nil {
		s.logger.Printf("max sequence %s: %v", instanceID, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	var summary perfmetrics.Summary
	if max >= 0 {
		events, err := s.events.GetRange(r.Context(), instanceID, 0, max)
		if err != nil {
			s.logger.Printf("load events %s: %v", instanceID, err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		summary = perfmetrics.Compute(export.TradesFromEvents(events), true)
	}

	// Snapshot persistence is best effort; serving the metrics comes first.
	if s.snapshots != nil && summary.TradeCount > 0 {
		snap := &domain.MetricSnapshot{
			InstanceID:       instanceID,
			SharpeRatio:      summary.SharpeRatio,
			SortinoRatio:     summary.SortinoRatio,
			CalmarRatio:      summary.CalmarRatio,
			ProfitFactor:     summary.ProfitFactor,
			DrawdownDuration: summary.DrawdownDuration,
			TradeCount:       summary.TradeCount,
			CreatedAt:        time.Now().UnixMilli(),
		}
		if err := s.snapshots.Insert(r.Context(), snap); err != nil {
			s.logger.Printf("persist metric snapshot %s: %v", instanceID, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"instanceId": instanceID,
		"metrics":    summary,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["instanceID"]

	snap, err := s.exporter.Assemble(r.Context(), instanceID)
	if err != nil {
		s.logger.Printf("export %s: %v", instanceID, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="track-record-`+instanceID+`.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(export.RenderCSV(snap.Events)))
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
