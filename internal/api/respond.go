package api

import (
    "encoding/json"
    "fmt"
    "io"
    "mime"
    "net/http"
    "os"
    "path/filepath"
    "strconv"

    "github.com/klauspost/compress/zip"
    "github.com/rs/zerolog/hlog"

    "github.com/local/tealpdf/internal/apperr"
    "github.com/local/tealpdf/internal/filetype"
    "github.com/local/tealpdf/internal/pdfops"
    "github.com/local/tealpdf/internal/tempfs"
)

type errorBody struct {
    Detail string `json:"detail"`
}

// handler does the work of one upload route inside its own workspace.
type handler func(w http.ResponseWriter, r *http.Request, ws *tempfs.Workspace) error

// upload gives h a fresh workspace and turns its error into a JSON reply.
// fallback is what callers see for internal failures.
func (s *Server) upload(fallback string, h handler) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        ws, err := s.root.Workspace()
        if err != nil {
            s.fail(w, r, err, fallback)
            return
        }
        defer ws.Release()

        if err := h(w, r, ws); err != nil {
            s.fail(w, r, err, fallback)
        }
    }
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
    status := apperr.Status(err)
    l := hlog.FromRequest(r)
    if status >= http.StatusInternalServerError {
        l.Error().Err(err).Msg(fallback)
    } else {
        l.Warn().Err(err).Int("status", status).Msg("request rejected")
    }
    writeJSON(w, status, errorBody{Detail: apperr.PublicMessage(err, fallback)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

// sendFile streams path as an attachment. Once headers are out a copy error
// can only be logged, so it returns nil from then on.
func sendFile(w http.ResponseWriter, r *http.Request, path, filename, contentType string) error {
    f, err := os.Open(path)
    if err != nil {
        return fmt.Errorf("open result: %w", err)
    }
    defer f.Close()
    info, err := f.Stat()
    if err != nil {
        return fmt.Errorf("stat result: %w", err)
    }
    if contentType == "" {
        contentType = filetype.MIMEFor(filepath.Ext(filename))
    }

    h := w.Header()
    h.Set("Content-Type", contentType)
    h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
    h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
    w.WriteHeader(http.StatusOK)
    if _, err := io.Copy(w, f); err != nil {
        hlog.FromRequest(r).Warn().Err(err).Str("file", filename).Msg("response copy interrupted")
    }
    return nil
}

// zipArtifacts packs arts into a deflated archive at path.
func zipArtifacts(path string, arts []pdfops.Artifact) (err error) {
    out, err := os.Create(path)
    if err != nil {
        return fmt.Errorf("create archive: %w", err)
    }
    defer func() {
        if cerr := out.Close(); err == nil && cerr != nil {
            err = cerr
        }
    }()

    zw := zip.NewWriter(out)
    for _, a := range arts {
        if err := addToZip(zw, a); err != nil {
            _ = zw.Close()
            return err
        }
    }
    return zw.Close()
}

func addToZip(zw *zip.Writer, a pdfops.Artifact) error {
    src, err := os.Open(a.Path)
    if err != nil {
        return fmt.Errorf("open %s: %w", a.Name, err)
    }
    defer src.Close()
    dst, err := zw.CreateHeader(&zip.FileHeader{Name: a.Name, Method: zip.Deflate})
    if err != nil {
        return fmt.Errorf("add %s: %w", a.Name, err)
    }
    if _, err := io.Copy(dst, src); err != nil {
        return fmt.Errorf("write %s: %w", a.Name, err)
    }
    return nil
}
