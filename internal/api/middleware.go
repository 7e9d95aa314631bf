package api

import (
    "net/http"
    "runtime/debug"
    "strings"
    "time"

    "github.com/rs/zerolog/hlog"
    "github.com/rs/zerolog/log"

    "github.com/local/tealpdf/internal/apperr"
    "github.com/local/tealpdf/internal/metrics"
)

// chain wraps next, outermost first: recover, request logging, CORS, metrics.
func chain(next http.Handler, origins []string) http.Handler {
    h := instrument(next)
    h = cors(h, origins)
    h = hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
        hlog.FromRequest(r).Info().
            Str("method", r.Method).
            Str("path", r.URL.Path).
            Int("status", status).
            Int("size", size).
            Dur("duration", dur).
            Msg("request")
    })(h)
    h = hlog.RemoteAddrHandler("ip")(h)
    h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
    h = hlog.NewHandler(log.Logger)(h)
    return recoverer(h)
}

// recoverer turns a panic into a generic 500. Deferred workspace releases
// inside the handler have already run by the time it recovers.
func recoverer(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            rec := recover()
            if rec == nil {
                return
            }
            if rec == http.ErrAbortHandler {
                panic(rec)
            }
            log.Error().
                Interface("panic", rec).
                Str("path", r.URL.Path).
                Bytes("stack", debug.Stack()).
                Msg("handler panicked")
            writeJSON(w, http.StatusInternalServerError, errorBody{Detail: apperr.GenericMessage})
        }()
        next.ServeHTTP(w, r)
    })
}

func cors(next http.Handler, origins []string) http.Handler {
    wildcard := len(origins) == 0
    allowed := make(map[string]bool, len(origins))
    for _, o := range origins {
        if o == "*" { wildcard = true }
        allowed[strings.TrimRight(o, "/")] = true
    }

    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        origin := r.Header.Get("Origin")
        if origin != "" && (wildcard || allowed[origin]) {
            h := w.Header()
            if wildcard {
                h.Set("Access-Control-Allow-Origin", "*")
            } else {
                h.Set("Access-Control-Allow-Origin", origin)
                h.Add("Vary", "Origin")
            }
            h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Original-Size, X-Compressed-Size, X-Compression-Strategy, X-Compression-Ratio")
            if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
                h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
                h.Set("Access-Control-Allow-Headers", "*")
                h.Set("Access-Control-Max-Age", "600")
                w.WriteHeader(http.StatusNoContent)
                return
            }
        }
        next.ServeHTTP(w, r)
    })
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (s *statusRecorder) WriteHeader(code int) {
    if s.status == 0 { s.status = code }
    s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
    if s.status == 0 { s.status = http.StatusOK }
    return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// instrument sits next to the mux so r.Pattern is the matched route after
// ServeHTTP returns. Unmatched requests are labelled "unmatched".
func instrument(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w}
        next.ServeHTTP(rec, r)
        route := r.Pattern
        if route == "" { route = "unmatched" }
        status := rec.status
        if status == 0 { status = http.StatusOK }
        metrics.ObserveRequest(route, status, time.Since(start))
    })
}
