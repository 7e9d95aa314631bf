// Package api exposes the PDF and image operations over HTTP.
package api

import (
    "net/http"

    "github.com/local/tealpdf/internal/filetype"
    "github.com/local/tealpdf/internal/imageops"
    "github.com/local/tealpdf/internal/metrics"
    "github.com/local/tealpdf/internal/pdfops"
    "github.com/local/tealpdf/internal/statuscheck"
    "github.com/local/tealpdf/internal/tempfs"
)

const (
    serviceName    = "TealPDF API"
    serviceVersion = "1.0.0"
)

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
    Root     *tempfs.Root
    PDF      *pdfops.Service
    Images   *imageops.Selector
    Detector *filetype.Detector
    Status   *statuscheck.Checker

    MaxUploadMB    int64
    DefaultQuality int
    MaxDimension   int
    AllowedOrigins []string
}

// Server owns no per-request state; every upload lives in a workspace that
// is released before the handler returns.
type Server struct {
    root   *tempfs.Root
    pdf    *pdfops.Service
    images *imageops.Selector
    detect *filetype.Detector
    status *statuscheck.Checker

    maxUpload      int64
    defaultQuality int
    maxSide        int
    origins        []string
}

func New(d Deps) *Server {
    if d.Detector == nil { d.Detector = filetype.New() }
    if d.Images == nil { d.Images = imageops.NewSelector(true) }
    if d.Status == nil { d.Status = statuscheck.New(statuscheck.Options{}) }
    if d.MaxUploadMB <= 0 { d.MaxUploadMB = 100 }
    if d.DefaultQuality <= 0 { d.DefaultQuality = 85 }
    if d.MaxDimension <= 0 { d.MaxDimension = imageops.DefaultMaxSide }
    return &Server{
        root:           d.Root,
        pdf:            d.PDF,
        images:         d.Images,
        detect:         d.Detector,
        status:         d.Status,
        maxUpload:      d.MaxUploadMB << 20,
        defaultQuality: d.DefaultQuality,
        maxSide:        d.MaxDimension,
        origins:        d.AllowedOrigins,
    }
}

// RegisterRoutes attaches every route to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("GET /{$}", s.handleRoot)
    mux.HandleFunc("GET /health", s.handleHealth)
    mux.HandleFunc("GET /health/details", s.handleHealthDetails)
    mux.Handle("GET /metrics", metrics.Handler())

    mux.HandleFunc("POST /merge", s.upload("Error merging PDFs", s.handleMerge))
    mux.HandleFunc("POST /get-page-count", s.upload("Error getting page count", s.handlePageCount))
    mux.HandleFunc("POST /split", s.upload("Error splitting PDF", s.handleSplit))
    mux.HandleFunc("POST /compress", s.upload("Error compressing PDF", s.handleCompress))
    mux.HandleFunc("POST /pdf-to-word", s.upload("Error converting PDF to Word", s.handlePDFToWord))
    mux.HandleFunc("POST /word-to-pdf", s.upload("Error converting Word to PDF", s.handleWordToPDF))

    mux.HandleFunc("POST /image/resize", s.upload("Error resizing image", s.handleResize))
    mux.HandleFunc("POST /image/compress", s.upload("Error compressing image", s.handleImageCompress))
    mux.HandleFunc("POST /image/crop", s.upload("Error cropping image", s.handleCrop))
    mux.HandleFunc("GET /image/supported-formats", s.handleSupportedFormats)
}

// Handler returns the routed mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
    mux := http.NewServeMux()
    s.RegisterRoutes(mux)
    return chain(mux, s.origins)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"message": serviceName + " is running!", "version": serviceVersion})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "message": "API is operational"})
}

func (s *Server) handleHealthDetails(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, s.status.Summary(r.Context()))
}
