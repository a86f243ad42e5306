package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/gateway"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/grid"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/store"
)

// viewRequest asks for a grid window over the result.
type viewRequest struct {
	Search    string `json:"search,omitempty"`
	Sort      string `json:"sort,omitempty"`
	Direction string `json:"direction,omitempty"`
	TypedSort bool   `json:"typed_sort,omitempty"`
	Page      int    `json:"page,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
}

type queryRequest struct {
	Query     string       `json:"query"`
	TimeoutMs int64        `json:"timeout_ms,omitempty"`
	MaxRows   int          `json:"max_rows,omitempty"`
	View      *viewRequest `json:"view,omitempty"`
}

type searchRequest struct {
	queryir.FilterSpec
	View *viewRequest `json:"view,omitempty"`
}

type textRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session": s.sess.ID()})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateView(req.View); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	out := s.sess.Execute(r.Context(), gateway.RawRequest{Text: req.Query}, s.callOptions(req.TimeoutMs, req.MaxRows))
	s.writeOutcome(w, r, out, "", req.View)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateView(req.View); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	out := s.sess.Search(r.Context(), "", req.FilterSpec)
	s.writeOutcome(w, r, out, req.Table, req.View)
}

// callOptions lets a request tighten, never loosen, the session limits.
func (s *Server) callOptions(timeoutMs int64, maxRows int) gateway.Options {
	limits := s.sess.Limits()
	opts := gateway.Options{}
	if d := time.Duration(timeoutMs) * time.Millisecond; d > 0 && d < limits.Timeout {
		opts.Timeout = d
	}
	if maxRows > 0 && maxRows < limits.MaxRows {
		opts.MaxRows = maxRows
	}
	return opts
}

func validateView(v *viewRequest) error {
	if v != nil && v.PageSize < 0 {
		return grid.ErrInvalidPageSize
	}
	return nil
}

func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, out gateway.Outcome, table string, view *viewRequest) {
	body := newOutcomeBody(out)
	body.RequestID = RequestIDFromContext(r.Context())

	if success, ok := out.(gateway.Success); ok && view != nil {
		window, err := s.window(r, success.Result, table, view)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		body.Window = &window
	}
	writeJSON(w, outcomeStatus(out), body)
}

// window applies the requested grid operations to a fresh grid.
func (s *Server) window(r *http.Request, res *gateway.QueryResult, table string, v *viewRequest) (grid.Window, error) {
	g, err := s.sess.NewGrid(res, s.sess.GridColumns(r.Context(), table, res))
	if err != nil {
		return grid.Window{}, err
	}
	if v.PageSize > 0 {
		if _, err := g.SetPageSize(v.PageSize); err != nil {
			return grid.Window{}, err
		}
	}
	g.SetTypedSort(v.TypedSort)
	if v.Sort != "" {
		g.SetSort(v.Sort, grid.ParseDirection(v.Direction))
	}
	if v.Search != "" {
		g.SetSearchTerm(v.Search)
	}
	return g.SetPage(v.Page), nil
}

func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Lint(req.Query))
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	steps, err := s.sess.Explain(r.Context(), req.Query)
	var rejected *gateway.RejectionError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"plan": steps})
	case errors.As(err, &rejected):
		writeError(w, r, http.StatusUnprocessableEntity, rejected.Error())
	case errors.Is(err, gateway.ErrNoPlanner):
		writeError(w, r, http.StatusNotImplemented, err.Error())
	default:
		writeError(w, r, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.sess.Tables(r.Context())
	if err != nil {
		s.logger.Error("list tables failed", "error", err)
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	cols, err := s.sess.Columns(r.Context(), table)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "columns": cols})
}

func (s *Server) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	size, err := queryInt(r, "page_size")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sess.HistoryPage(page, size))
}

func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	s.sess.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := historyID(w, r)
	if !ok {
		return
	}
	entry, found := s.sess.HistoryEntry(id)
	if !found {
		writeError(w, r, http.StatusNotFound, "history entry not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleHistoryReplay(w http.ResponseWriter, r *http.Request) {
	id, ok := historyID(w, r)
	if !ok {
		return
	}
	text, found := s.sess.ReplayHistoryEntry(id)
	if !found {
		writeError(w, r, http.StatusNotFound, "history entry not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "query_text": text})
}

func historyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "history id must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; absent is 0.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}
