package api

import (
    "net/http"
    "strconv"

    "github.com/rs/zerolog/hlog"

    "github.com/local/tealpdf/internal/apperr"
    "github.com/local/tealpdf/internal/filetype"
    "github.com/local/tealpdf/internal/logger"
    "github.com/local/tealpdf/internal/pdfops"
    "github.com/local/tealpdf/internal/tempfs"
)

type pageCountResp struct {
    PageCount int    `json:"page_count"`
    Filename  string `json:"filename"`
    Success   bool   `json:"success"`
}

// pdfUpload returns the PDF sent as field, checked by name and content.
func (s *Server) pdfUpload(f *form, field string) (upload, error) {
    up, ok := f.file(field)
    if !ok || !filetype.HasExtension(up.Name, filetype.KindPDF) {
        return upload{}, apperr.Validation("File must be a PDF")
    }
    if err := s.detect.Verify(up.Path, filetype.KindPDF); err != nil {
        return upload{}, err
    }
    return up, nil
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request, ws *tempfs.Workspace) error {
    f, err := s.readForm(w, r, ws)
    if err != nil { return err }

    files := f.files["files"]
    if len(files) < 2 {
        return apperr.Validation("At least 2 PDF files are required for merging")
    }
    paths := make([]string, 0, len(files))
    for _, up := range files {
        if !filetype.HasExtension(up.Name, filetype.KindPDF) {
            return apperr.Validation("File %s is not a PDF", up.Name)
        }
        if err := s.detect.Verify(up.Path, filetype.KindPDF); err != nil {
            return err
        }
        paths = append(paths, up.Path)
    }

    out := ws.Unique("merged", ".pdf")
    if err := s.pdf.Merge(paths, out); err != nil {
        return err
    }
    hlog.FromRequest(r).Info().Int("files", len(paths)).Msg("merged PDFs")
    return sendFile(w, r, out, "merged_document.pdf", "")
}

func (s *Server) handlePageCount(w http.ResponseWriter, r *http.Request, ws *tempfs.Workspace) error {
    f, err := s.readForm(w, r, ws)
    if err != nil { return err }
    up, err := s.pdfUpload(f, "file")
    if err != nil { return err }

    n := s.pdf.PageCount(up.Path)
    writeJSON(w, http.StatusOK, pageCountResp{PageCount: n, Filename: up.Name, Success: true})
    return nil
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request, ws *tempfs.Workspace) error {
    f, err := s.readForm(w, r, ws)
    if err != nil { return err }
    up, err := s.pdfUpload(f, "file")
    if err != nil { return err }

    mode, err := pdfops.ParseSplitMode(f.value("split_mode"))
    if err != nil { return err }
    req := pdfops.SplitRequest{Mode: mode, Pages: f.value("pages")}
    if mode == pdfops.SplitCustomPage {
        raw := f.value("split_page")
        if raw == "" {
            return apperr.Validation("split_page is required when split_mode is 'custom-page'")
        }
        n, err := strconv.Atoi(raw)
        if err != nil || n < 1 {
            return apperr.Validation("split_page must be a positive integer")
        }
        req.SplitPage = n
    }

    dir, err := ws.Subdir("split")
    if err != nil { return err }
    arts, err := s.pdf.Split(up.Path, dir, req)
    if err != nil { return err }

    archive := ws.Unique("split", ".zip")
    if err := zipArtifacts(archive, arts); err != nil {
        return err
    }
    hlog.FromRequest(r).Info().Str("mode", mode.String()).Int("parts", len(arts)).Msg("split PDF")
    return sendFile(w, r, archive, "split_pages.zip", "")
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request, ws *tempfs.Workspace) error {
    f, err := s.readForm(w, r, ws)
    if err != nil { return err }
    up, err := s.pdfUpload(f, "file")
    if err != nil { return err }

    res, err := s.pdf.Compress(r.Context(), up.Path, ws.Dir())
    if err != nil { return err }

    h := w.Header()
    h.Set("X-Original-Size", strconv.FormatInt(res.OriginalSize, 10))
    h.Set("X-Compressed-Size", strconv.FormatInt(res.Size, 10))
    h.Set("X-Compression-Strategy", res.Strategy)
    return sendFile(w, r, res.Path, "compressed_document.pdf", "")
}

func (s *Server) handlePDFToWord(w http.ResponseWriter, r *http.Request, ws *tempfs.Workspace) error {
    f, err := s.readForm(w, r, ws)
    if err != nil { return err }
    up, err := s.pdfUpload(f, "file")
    if err != nil { return err }

    out, err := s.pdf.ToWord(r.Context(), up.Path, ws.Dir())
    if err != nil { return err }
    return sendFile(w, r, out, "converted_document.docx", "")
}

func (s *Server) handleWordToPDF(w http.ResponseWriter, r *http.Request, ws *tempfs.Workspace) error {
    f, err := s.readForm(w, r, ws)
    if err != nil { return err }
    up, ok := f.file("file")
    if !ok || !filetype.HasExtension(up.Name, filetype.KindWord) {
        return apperr.Validation("File must be a Word document (.doc or .docx)")
    }
    if err := s.detect.Verify(up.Path, filetype.KindWord); err != nil {
        return err
    }

    hlog.FromRequest(r).Debug().Str("file", up.Name).Str("size", logger.Size(up.Size)).Msg("converting Word upload")
    out, err := s.pdf.FromWord(r.Context(), up.Path, ws.Dir())
    if err != nil { return err }
    return sendFile(w, r, out, "converted_document.pdf", "")
}
