package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/spektr-org/ecomdash/dashboard"
	"github.com/spektr-org/ecomdash/helpers"
	"github.com/spektr-org/ecomdash/render"
	"github.com/spektr-org/ecomdash/rfm"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const (
	contentTypeJSON = "application/json"
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	errNotFound = errors.New("not found")
	errBadParam = errors.New("bad parameter")
	errNotChart = errors.New("panel is not a chart")
)

// ============================================================================
// RESPONSES
// ============================================================================

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorBody{Error: "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrUnknownPage),
		errors.Is(err, dashboard.ErrUnknownPanel),
		errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrInvalidRange),
		errors.Is(err, dashboard.ErrInvalidSegment),
		errors.Is(err, rfm.ErrReferenceBeforePurchase),
		errors.Is(err, errBadParam):
		return http.StatusBadRequest
	case errors.Is(err, render.ErrEmptyChart),
		errors.Is(err, render.ErrUnsupportedChart),
		errors.Is(err, errNotChart):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
}

// writeBody sends a fully rendered payload; rendering into a buffer first
// lets failures still produce a JSON error.
func writeBody(w http.ResponseWriter, contentType, filename string, body *bytes.Buffer) {
	w.Header().Set("Content-Type", contentType)
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	_, _ = body.WriteTo(w)
}

// ============================================================================
// QUERY PARAMETERS
// ============================================================================

func pageParams(r *http.Request) (dashboard.PageParams, error) {
	q := r.URL.Query()
	start, err := dashboard.ParseDate(q.Get("start"))
	if err != nil {
		return dashboard.PageParams{}, err
	}
	end, err := dashboard.ParseDate(q.Get("end"))
	if err != nil {
		return dashboard.PageParams{}, err
	}
	return dashboard.PageParams{Start: start, End: end}, nil
}

func rfmParams(r *http.Request) (dashboard.RFMParams, error) {
	pp, err := pageParams(r)
	if err != nil {
		return dashboard.RFMParams{}, err
	}
	q := r.URL.Query()
	params := dashboard.RFMParams{PageParams: pp, Segment: q.Get("segment")}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return params, fmt.Errorf("%w: limit %q must be a non-negative integer", errBadParam, v)
		}
		params.Limit = n
	}
	if v := q.Get("reference"); v != "" {
		ref, err := dashboard.ParseDate(v)
		if err != nil {
			return params, fmt.Errorf("%w: reference %q must be YYYY-MM-DD", errBadParam, v)
		}
		// end of day, so purchases on the reference date have recency 0
		params.Reference = ref.Add(24*time.Hour - time.Second)
	}
	if v := q.Get("distinct"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, fmt.Errorf("%w: distinct %q must be a boolean", errBadParam, v)
		}
		params.DistinctOrders = &b
	}
	return params, nil
}

// ============================================================================
// HANDLERS
// ============================================================================

type indexData struct {
	Pages   []dashboard.PageInfo
	Records int
	Start   string
	End     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ds := s.svc.Dataset()
	data := indexData{Pages: s.svc.Pages(), Records: ds.Len()}
	if ds.Len() > 0 {
		data.Start = ds.MinPurchase().Format("2006-01-02")
		data.End = ds.MaxPurchase().Format("2006-01-02")
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		writeError(w, fmt.Errorf("render index: %w", err))
		return
	}
	writeBody(w, "text/html; charset=utf-8", "", &buf)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ds := s.svc.Dataset()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"rows":     ds.Len(),
		"loadedAt": ds.Stats.LoadedAt,
	})
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Pages())
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	params, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := s.svc.Page(r.Context(), mux.Vars(r)["key"], params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) panel(r *http.Request) (*dashboard.Panel, error) {
	params, err := pageParams(r)
	if err != nil {
		return nil, err
	}
	vars := mux.Vars(r)
	return s.svc.PagePanel(r.Context(), vars["key"], vars["panel"], params)
}

func (s *Server) handlePanelPNG(w http.ResponseWriter, r *http.Request) {
	p, err := s.panel(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if p.Result == nil || p.Result.ChartConfig == nil {
		writeError(w, fmt.Errorf("%w: %s", errNotChart, p.Key))
		return
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(p.Result.ChartConfig, &buf); err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, render.ContentType, "", &buf)
}

func (s *Server) handlePanelCSV(w http.ResponseWriter, r *http.Request) {
	p, err := s.panel(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := helpers.WriteResultCSV(&buf, p.Result); err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, contentTypeCSV, mux.Vars(r)["key"]+"-"+p.Key+".csv", &buf)
}

func (s *Server) computeRFM(w http.ResponseWriter, r *http.Request) (*dashboard.RFMResult, bool) {
	params, err := rfmParams(r)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	res, err := s.svc.RFM(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return res, true
}

func (s *Server) handleRFM(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.computeRFM(w, r); ok {
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleRFMSummary(w http.ResponseWriter, r *http.Request) {
	res, ok := s.computeRFM(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reference": res.Reference,
		"total":     res.Total,
		"segments":  res.Summary,
	})
}

func (s *Server) handleRFMCSV(w http.ResponseWriter, r *http.Request) {
	res, ok := s.computeRFM(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := helpers.WriteRFMCSV(&buf, res.Customers); err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, contentTypeCSV, "rfm.csv", &buf)
}

func (s *Server) handleRFMXLSX(w http.ResponseWriter, r *http.Request) {
	res, ok := s.computeRFM(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := helpers.WriteRFMXLSX(&buf, res.Report, res.Customers); err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, contentTypeXLSX, "rfm.xlsx", &buf)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if s.schema == nil {
		writeError(w, fmt.Errorf("%w: schema was not discovered", errNotFound))
		return
	}
	writeJSON(w, http.StatusOK, s.schema)
}
