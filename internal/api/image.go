package api

import (
    "fmt"
    "net/http"
    "strconv"

    "github.com/rs/zerolog/hlog"

    "github.com/local/tealpdf/internal/apperr"
    "github.com/local/tealpdf/internal/filetype"
    "github.com/local/tealpdf/internal/imageops"
    "github.com/local/tealpdf/internal/logger"
    "github.com/local/tealpdf/internal/tempfs"
)

const (
    minQuality = 10
    maxQuality = 100
)

func (s *Server) imageUpload(f *form) (upload, error) {
    up, ok := f.file("file")
    if !ok || !filetype.HasExtension(up.Name, filetype.KindImage) {
        return upload{}, apperr.Validation("File must be a valid image format")
    }
    if err := s.detect.Verify(up.Path, filetype.KindImage); err != nil {
        return upload{}, err
    }
    return up, nil
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request, ws *tempfs.Workspace) error {
    f, err := s.readForm(w, r, ws)
    if err != nil { return err }
    up, err := s.imageUpload(f)
    if err != nil { return err }

    mode, err := imageops.ParseResizeMode(f.value("resize_type"))
    if err != nil { return err }
    spec := imageops.ResizeSpec{Mode: mode, LockAspect: f.flag("maintain_aspect_ratio", true), MaxSide: s.maxSide}
    if spec.Width, err = f.optionalInt("width"); err != nil {
        return err
    }
    if spec.Height, err = f.optionalInt("height"); err != nil {
        return err
    }
    if spec.Percentage, err = f.optionalFloat("percentage"); err != nil {
        return err
    }

    out := ws.Unique("resized", ".jpg")
    if _, err := imageops.Resize(up.Path, out, spec); err != nil {
        return err
    }
    return sendFile(w, r, out, "resized_image.jpg", "image/jpeg")
}

func (s *Server) handleImageCompress(w http.ResponseWriter, r *http.Request, ws *tempfs.Workspace) error {
    f, err := s.readForm(w, r, ws)
    if err != nil { return err }
    up, err := s.imageUpload(f)
    if err != nil { return err }

    quality := s.defaultQuality
    if q, err := f.optionalInt("quality"); err != nil {
        return err
    } else if q != nil {
        quality = *q
    }
    if quality < minQuality || quality > maxQuality {
        return apperr.Validation("Quality must be between %d and %d", minQuality, maxQuality)
    }

    img, err := imageops.Decode(up.Path)
    if err != nil { return err }
    res, err := s.images.Compress(r.Context(), img, quality, ws.Dir())
    if err != nil { return err }

    hlog.FromRequest(r).Info().
        Str("strategy", res.Label).
        Str("original", logger.Size(up.Size)).
        Str("compressed", logger.Size(res.Size)).
        Msg("compressed image")

    h := w.Header()
    h.Set("X-Compression-Strategy", res.Label)
    h.Set("X-Original-Size", strconv.FormatInt(up.Size, 10))
    h.Set("X-Compressed-Size", strconv.FormatInt(res.Size, 10))
    h.Set("X-Compression-Ratio", fmt.Sprintf("%.1f%%", res.Ratio(up.Size)*100))
    return sendFile(w, r, res.Path, "compressed_image"+res.Ext, res.MIME)
}

func (s *Server) handleCrop(w http.ResponseWriter, r *http.Request, ws *tempfs.Workspace) error {
    f, err := s.readForm(w, r, ws)
    if err != nil { return err }
    up, err := s.imageUpload(f)
    if err != nil { return err }

    var box imageops.CropBox
    for _, fld := range []struct {
        name string
        dst  *int
    }{{"x", &box.X}, {"y", &box.Y}, {"width", &box.Width}, {"height", &box.Height}} {
        if *fld.dst, err = f.requiredInt(fld.name); err != nil {
            return err
        }
    }

    out := ws.Unique("cropped", ".jpg")
    if err := imageops.Crop(up.Path, out, box); err != nil {
        return err
    }
    return sendFile(w, r, out, "cropped_image.jpg", "image/jpeg")
}

func (s *Server) handleSupportedFormats(w http.ResponseWriter, r *http.Request) {
    c, err := imageops.SupportedFormats()
    if err != nil {
        s.fail(w, r, err, "Error loading supported formats")
        return
    }
    writeJSON(w, http.StatusOK, c)
}
