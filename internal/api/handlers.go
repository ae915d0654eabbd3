package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/JonMunkholm/ddlgen/internal/config"
	"github.com/JonMunkholm/ddlgen/internal/ddl"
	"github.com/JonMunkholm/ddlgen/internal/metrics"
	"github.com/JonMunkholm/ddlgen/internal/schema"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	generator   *ddl.Generator
	sources     *schema.Sources
	metrics     *metrics.Recorder
	webFS       fs.FS
	config      *config.Config
	cors        *CORS
	rateLimiter *RateLimiter

	dialectsBody []byte
	dialectsETag string
}

// NewHandler creates a new API handler. webFS must contain a "web" directory.
func NewHandler(gen *ddl.Generator, sources *schema.Sources, rec *metrics.Recorder, webFS fs.FS, cfg *config.Config) (*Handler, error) {
	// Strip the "web" prefix from the embedded filesystem
	subFS, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, fmt.Errorf("failed to create sub filesystem: %w", err)
	}

	body, err := json.Marshal(dialectsData{Dialects: gen.Dialects().Dialects()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode dialects: %w", err)
	}

	return &Handler{
		generator:    gen,
		sources:      sources,
		metrics:      rec,
		webFS:        subFS,
		config:       cfg,
		cors:         NewCORS(cfg.CORSOrigins),
		rateLimiter:  NewRateLimiter(cfg.RateLimitPerMinute, time.Minute),
		dialectsBody: body,
		dialectsETag: `"` + strconv.FormatUint(xxh3.Hash(body), 16) + `"`,
	}, nil
}

// Routes builds the complete HTTP handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// API routes - wrapped with rate limiting and a body size limit
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/generate-ddl", h.handleGenerateDDL)
	apiMux.HandleFunc("GET /api/dialects", h.handleListDialects)
	apiMux.HandleFunc("GET /api/sources", h.handleListSources)
	apiMux.HandleFunc("GET /api/sources/{kind}/tables", h.handleListTables)
	apiMux.HandleFunc("GET /api/sources/{kind}/tables/{table}/columns", h.handleGetColumns)

	mux.Handle("/api/", LimitBodySize(h.rateLimiter.Wrap(apiMux), h.config.MaxBodyBytes))
	mux.Handle("GET /metrics", h.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/", http.FileServer(http.FS(h.webFS)))

	return RequestID(h.cors.Wrap(mux))
}

// Stop stops background goroutines. Should be called on graceful shutdown.
func (h *Handler) Stop() {
	h.rateLimiter.Stop()
}

// Error codes for API responses
const (
	ErrInvalidRequest   = "INVALID_REQUEST"
	ErrInvalidInput     = "INVALID_INPUT"
	ErrInvalidTableName = "INVALID_TABLE_NAME"
	ErrUnknownSource    = "UNKNOWN_SOURCE"
	ErrTableNotFound    = "TABLE_NOT_FOUND"
	ErrSourceError      = "SOURCE_ERROR"
	ErrGenerateFailed   = "GENERATE_ERROR"
	ErrRateLimited      = "RATE_LIMIT"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondJSON sends a JSON response with type-safe data
func respondJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondError sends an error JSON response (logs details server-side, sends safe message to client)
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, code string, clientMessage string, status int, internalErr error) {
	id := RequestIDFrom(r.Context())
	if internalErr != nil {
		log.Printf("[%s] req=%s %s: %v", code, id, clientMessage, internalErr)
	} else {
		log.Printf("[%s] req=%s %s", code, id, clientMessage)
	}
	writeError(w, status, code, clientMessage)
}

// decodeJSONBody decodes JSON request body into the provided value.
// Returns false if decoding fails (error response already sent).
func (h *Handler) decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, r, ErrInvalidRequest, "Request body too large", http.StatusRequestEntityTooLarge, err)
			return false
		}
		h.respondError(w, r, ErrInvalidRequest, "Invalid request body", http.StatusBadRequest, err)
		return false
	}
	return true
}

// lookupSource resolves a source kind.
// Returns false if the kind is unknown (error response already sent).
func (h *Handler) lookupSource(w http.ResponseWriter, r *http.Request, kind string) (schema.Source, bool) {
	src, err := h.sources.Get(kind)
	if err != nil {
		h.respondError(w, r, ErrUnknownSource, "Source not configured: "+kind, http.StatusNotFound, nil)
		return nil, false
	}
	return src, true
}

// readTable loads the columns of a source table.
// Returns nil if loading failed (error response already sent).
func (h *Handler) readTable(w http.ResponseWriter, r *http.Request, src schema.Source, table string) *schema.Table {
	if !ddl.ValidTableName(table) {
		h.respondError(w, r, ErrInvalidTableName, "Invalid table name format", http.StatusBadRequest, nil)
		return nil
	}
	t, err := src.Columns(r.Context(), table)
	switch {
	case errors.Is(err, schema.ErrTableNotFound):
		h.respondError(w, r, ErrTableNotFound, "Table not found: "+table, http.StatusNotFound, err)
		return nil
	case err != nil:
		h.respondError(w, r, ErrSourceError, "Failed to read table columns", http.StatusBadGateway, err)
		return nil
	}
	return t
}

type sourceTableRef struct {
	Kind  string `json:"kind"`
	Table string `json:"table"`
}

type generateRequest struct {
	ddl.Request
	SourceTable *sourceTableRef `json:"sourceTable,omitempty"`
}

func (h *Handler) handleGenerateDDL(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	if ref := req.SourceTable; ref != nil {
		if strings.TrimSpace(req.SQL) != "" || len(req.Fields) > 0 {
			h.metrics.ObserveRequest("invalid_input", 0)
			h.respondError(w, r, ErrInvalidInput, "Provide only one of sql, fields or sourceTable", http.StatusBadRequest, nil)
			return
		}
		src, ok := h.lookupSource(w, r, ref.Kind)
		if !ok {
			return
		}
		t := h.readTable(w, r, src, ref.Table)
		if t == nil {
			return
		}
		t.ApplyTo(&req.Request)
	}

	resp, err := h.generator.Generate(r.Context(), req.Request)
	switch {
	case errors.Is(err, ddl.ErrInvalidInput):
		h.metrics.ObserveRequest("invalid_input", 0)
		h.respondError(w, r, ErrInvalidInput, err.Error(), http.StatusBadRequest, nil)
		return
	case err != nil:
		h.metrics.ObserveRequest("error", 0)
		h.respondError(w, r, ErrGenerateFailed, "Failed to generate DDL", http.StatusInternalServerError, err)
		return
	}

	h.metrics.ObserveRequest("ok", resp.ColumnCount)
	for _, d := range resp.DDLs {
		if d.Err != nil {
			log.Printf("[GENERATE] req=%s %s: %v", RequestIDFrom(r.Context()), d.DatabaseType, d.Err)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type dialectsData struct {
	Dialects []ddl.Dialect `json:"dialects"`
}

func (h *Handler) handleListDialects(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", h.dialectsETag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == h.dialectsETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if _, err := w.Write(h.dialectsBody); err != nil {
		log.Printf("failed to write dialects: %v", err)
	}
}

type sourcesData struct {
	Sources []schema.SourceInfo `json:"sources"`
}

func (h *Handler) handleListSources(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sourcesData{Sources: h.sources.List()})
}

type tablesData struct {
	Kind   string         `json:"kind"`
	Tables []schema.Table `json:"tables"`
}

func (h *Handler) handleListTables(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	src, ok := h.lookupSource(w, r, kind)
	if !ok {
		return
	}
	tables, err := src.Tables(r.Context())
	if err != nil {
		h.respondError(w, r, ErrSourceError, "Failed to list tables", http.StatusBadGateway, err)
		return
	}
	respondJSON(w, http.StatusOK, tablesData{Kind: src.Info().Kind, Tables: tables})
}

func (h *Handler) handleGetColumns(w http.ResponseWriter, r *http.Request) {
	src, ok := h.lookupSource(w, r, r.PathValue("kind"))
	if !ok {
		return
	}
	t := h.readTable(w, r, src, r.PathValue("table"))
	if t == nil {
		return
	}
	respondJSON(w, http.StatusOK, t)
}
