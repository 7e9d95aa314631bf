package api

import (
    "errors"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "strings"

    "github.com/local/tealpdf/internal/apperr"
    "github.com/local/tealpdf/internal/tempfs"
)

// maxFieldBytes bounds a single non-file form value.
const maxFieldBytes = 4 << 10

// upload is a file part already stored in the request workspace.
type upload struct {
    Field string
    Name  string
    Path  string
    Size  int64
}

type form struct {
    values map[string][]string
    files  map[string][]upload
}

// readForm streams the multipart body into ws. Nothing is spooled outside
// the workspace.
func (s *Server) readForm(w http.ResponseWriter, r *http.Request, ws *tempfs.Workspace) (*form, error) {
    r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
    mr, err := r.MultipartReader()
    if err != nil {
        return nil, apperr.Validation("Request must be multipart/form-data")
    }

    f := &form{values: map[string][]string{}, files: map[string][]upload{}}
    for {
        part, err := mr.NextPart()
        if err == io.EOF {
            break
        }
        if err != nil {
            return nil, bodyErr(err)
        }
        field := part.FormName()
        if field == "" {
            _ = part.Close()
            continue
        }

        if part.FileName() == "" {
            b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
            _ = part.Close()
            if err != nil {
                return nil, bodyErr(err)
            }
            if len(b) > maxFieldBytes {
                return nil, apperr.Validation("Field '%s' is too long", field)
            }
            f.values[field] = append(f.values[field], string(b))
            continue
        }

        name := part.FileName()
        path, n, err := ws.Save(name, part)
        _ = part.Close()
        if err != nil {
            return nil, bodyErr(err)
        }
        f.files[field] = append(f.files[field], upload{Field: field, Name: name, Path: path, Size: n})
    }
    return f, nil
}

func bodyErr(err error) error {
    var tooBig *http.MaxBytesError
    if errors.As(err, &tooBig) {
        return apperr.Validation("Upload exceeds the %d MB limit", tooBig.Limit>>20)
    }
    return fmt.Errorf("read request body: %w", err)
}

func (f *form) value(name string) string {
    if v := f.values[name]; len(v) > 0 {
        return strings.TrimSpace(v[0])
    }
    return ""
}

func (f *form) file(name string) (upload, bool) {
    if v := f.files[name]; len(v) > 0 {
        return v[0], true
    }
    return upload{}, false
}

// optionalInt returns nil for an absent or empty field.
func (f *form) optionalInt(name string) (*int, error) {
    raw := f.value(name)
    if raw == "" {
        return nil, nil
    }
    n, err := strconv.Atoi(raw)
    if err != nil {
        return nil, apperr.Validation("Field '%s' must be an integer", name)
    }
    return &n, nil
}

func (f *form) requiredInt(name string) (int, error) {
    n, err := f.optionalInt(name)
    if err != nil {
        return 0, err
    }
    if n == nil {
        return 0, apperr.Validation("Field '%s' is required", name)
    }
    return *n, nil
}

func (f *form) optionalFloat(name string) (float64, error) {
    raw := f.value(name)
    if raw == "" {
        return 0, nil
    }
    v, err := strconv.ParseFloat(raw, 64)
    if err != nil {
        return 0, apperr.Validation("Field '%s' must be a number", name)
    }
    return v, nil
}

// flag is true only for a case-insensitive "true"; absent means def.
func (f *form) flag(name string, def bool) bool {
    raw := f.value(name)
    if raw == "" {
        return def
    }
    return strings.EqualFold(raw, "true")
}
