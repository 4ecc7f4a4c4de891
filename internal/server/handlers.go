package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hyperjump/vecbridge/internal/ann"
	"github.com/hyperjump/vecbridge/internal/embeddings"
	"github.com/hyperjump/vecbridge/internal/models"
	"github.com/hyperjump/vecbridge/internal/storage"
	"go.uber.org/zap"
)

type documentsRequest struct {
	Documents []*models.DocumentInput `json:"documents"`
}

type deleteRequest struct {
	UIDs []string `json:"uids"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req documentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("index request", zap.Int("documents", len(req.Documents)))
	docs, err := s.embeddings.Index(r.Context(), req.Documents)
	if err != nil {
		s.fail(w, "indexing failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"indexed": len(docs), "documents": docs})
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req documentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		s.respondError(w, http.StatusBadRequest, "documents are required")
		return
	}
	s.logger.Debug("upsert request", zap.Int("documents", len(req.Documents)))
	docs, err := s.embeddings.Upsert(r.Context(), req.Documents)
	if err != nil {
		s.fail(w, "upsert failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"upserted": len(docs), "documents": docs})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.UIDs) == 0 {
		s.respondError(w, http.StatusBadRequest, "uids are required")
		return
	}
	s.logger.Debug("delete request", zap.Strings("uids", req.UIDs))
	ids, err := s.embeddings.Delete(r.Context(), req.UIDs)
	if err != nil {
		s.fail(w, "deletion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": len(ids), "ids": ids})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	texts := query.Texts()
	s.logger.Debug("search request", zap.Strings("queries", texts), zap.Int("limit", query.Limit))

	start := time.Now()
	results, err := s.embeddings.BatchSearch(r.Context(), texts, query.Limit)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		Queries:   texts,
		Results:   results,
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.embeddings.Count(r.Context())
	if err != nil {
		s.fail(w, "count failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.embeddings.Status(r.Context())
	if err != nil {
		s.fail(w, "status failed", err)
		return
	}
	resp := map[string]interface{}{
		"vectors":     st.Vectors,
		"documents":   st.Documents,
		"offset":      st.Offset,
		"persistence": st.Persistence,
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"backend":       s.config.ANN.Backend,
			"dimensions":    s.config.ANN.Dimensions,
			"metric":        s.config.ANN.Metric,
			"embedding":     s.config.Embedding.Provider,
			"database_path": s.config.Storage.DatabasePath,
			"index_path":    s.config.Storage.IndexPath,
		}
		if usage, err := storage.DiskUsage(s.config.Storage.DatabasePath, s.config.Storage.IndexPath); err == nil {
			resp["disk_usage_bytes"] = usage.Total()
			resp["disk_usage"] = usage
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.config == nil || s.config.Storage.IndexPath == "" {
		s.respondError(w, http.StatusBadRequest, "index path is not configured")
		return
	}
	if err := s.embeddings.Save(s.config.Storage.IndexPath); err != nil {
		s.fail(w, "save failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail logs err and maps it onto a status code: configuration errors are the
// caller's fault, an unreachable backend is a 503.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case ann.IsConfiguration(err), errors.Is(err, embeddings.ErrInvalidDocument):
		return http.StatusBadRequest
	case ann.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
