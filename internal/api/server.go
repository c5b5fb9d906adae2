// Package api serves stored pothole reports over HTTP.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/banshee-data/pothole.report/internal/db"
	"github.com/banshee-data/pothole.report/internal/httputil"
	"github.com/banshee-data/pothole.report/internal/report"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ReportReader is the read side of a report store. Both db.DB and
// report.JSONStore implement it.
type ReportReader interface {
	ListReports(ctx context.Context, limit int) ([]report.Report, error)
	GetReport(ctx context.Context, runID string) (*report.Report, error)
}

// StreetAggregator is implemented by stores that can total potholes per
// street.
type StreetAggregator interface {
	StreetTotals(ctx context.Context) ([]db.StreetTotal, error)
}

type Server struct {
	reports ReportReader
	router  *mux.Router
}

func NewServer(reports ReportReader) *Server {
	s := &Server{reports: reports, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Routes live on the root router so a method mismatch reaches
	// MethodNotAllowedHandler; a subrouter would report it as not found.
	r := s.router
	r.HandleFunc("/api/reports", s.listReports).Methods(http.MethodGet)
	r.HandleFunc("/api/reports/{id}", s.getReport).Methods(http.MethodGet)
	r.HandleFunc("/api/reports/{id}/summary", s.getSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/reports/{id}/chart", s.getChart).Methods(http.MethodGet)
	r.HandleFunc("/api/streets", s.listStreets).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "no such endpoint")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the API with request logging.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.router)
}

// Attach mounts the API under /api/ on mux.
func (s *Server) Attach(m *http.ServeMux) {
	m.Handle("/api/", s.Handler())
}

// listReports serves report headers; stores may omit pothole detail from
// listings, so detail_lubang is never part of the list shape.
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryLimit(r, defaultListLimit, maxListLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	reports, err := s.reports.ListReports(r.Context(), limit)
	if err != nil {
		httputil.WriteStoreError(w, "reports", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report.Headers(reports))
}

func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	rep, err := s.reports.GetReport(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteStoreError(w, "report", err)
		return nil, false
	}
	return rep, true
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if rep, ok := s.loadReport(w, r); ok {
		httputil.WriteJSON(w, http.StatusOK, rep)
	}
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	if rep, ok := s.loadReport(w, r); ok {
		httputil.WriteJSON(w, http.StatusOK, report.Summarize(rep))
	}
}

// getChart renders the severity histogram. format=png or svg returns an
// image; anything else the interactive HTML page.
func (s *Server) getChart(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "png", "svg":
		contentType := "image/png"
		if format == "svg" {
			contentType = "image/svg+xml"
		}
		w.Header().Set("Content-Type", contentType)
		if err := report.WriteHistogram(w, rep, format); err != nil {
			log.Printf("failed to render chart for %s: %v", rep.RunID, err)
		}
	case "", "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := report.RenderHTML(w, rep); err != nil {
			log.Printf("failed to render chart page for %s: %v", rep.RunID, err)
		}
	default:
		httputil.BadRequest(w, "invalid 'format' parameter "+strconv.Quote(format))
	}
}

func (s *Server) listStreets(w http.ResponseWriter, r *http.Request) {
	agg, ok := s.reports.(StreetAggregator)
	if !ok {
		httputil.WriteJSONError(w, http.StatusNotImplemented, "street totals need the sqlite store")
		return
	}
	totals, err := agg.StreetTotals(r.Context())
	if err != nil {
		httputil.WriteStoreError(w, "street totals", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, totals)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf("[%d] %s %s %.2fms",
			lrw.statusCode, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}
