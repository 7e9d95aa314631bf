package statuscheck

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/gen2brain/go-fitz"
    "github.com/go-pdf/fpdf"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
    Ping(ctx context.Context) error
}

// Probe is an external tool that was resolved at startup.
type Probe interface {
    Available() bool
}

// Versioned probes can also report what they found.
type Versioned interface {
    Probe
    Version() string
}

// Checker aggregates health checks for the converters and shared state.
type Checker struct {
    redis       RedisPinger
    office      Probe
    ghostscript Probe

    mupdfOnce sync.Once
    mupdf     Status
}

// Options configures the Checker. A nil Redis means none is configured.
type Options struct {
    Redis       RedisPinger
    LibreOffice Probe
    Ghostscript Probe
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses for /health/details.
type Summary struct {
    LibreOffice Status `json:"libreoffice"`
    Ghostscript Status `json:"ghostscript"`
    Redis       Status `json:"redis"`
    MuPDF       Status `json:"mupdf"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{
        redis:       opts.Redis,
        office:      opts.LibreOffice,
        ghostscript: opts.Ghostscript,
    }
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        LibreOffice: checkTool(c.office, "Running"),
        Ghostscript: checkTool(c.ghostscript, "Available"),
        Redis:       c.checkRedis(ctx),
        MuPDF:       c.checkMuPDF(),
    }
}

func (c *Checker) checkRedis(ctx context.Context) Status {
    if c.redis == nil {
        return Status{OK: false, Message: "not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.redis.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func checkTool(p Probe, okMsg string) Status {
    if p == nil || !p.Available() {
        return Status{OK: false, Message: "Binary not found"}
    }
    if v, ok := p.(Versioned); ok && v.Version() != "" {
        return Status{OK: true, Message: v.Version()}
    }
    return Status{OK: true, Message: okMsg}
}

// checkMuPDF opens a one-page document through the linked MuPDF once and
// caches the outcome.
func (c *Checker) checkMuPDF() Status {
    c.mupdfOnce.Do(func() {
        c.mupdf = probeMuPDF()
    })
    return c.mupdf
}

func probeMuPDF() (st Status) {
    defer func() {
        if r := recover(); r != nil {
            st = Status{OK: false, Message: fmt.Sprintf("panic: %v", r)}
        }
    }()

    var buf bytes.Buffer
    pdf := fpdf.New("P", "pt", "A6", "")
    pdf.AddPage()
    if err := pdf.Output(&buf); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    doc, err := fitz.NewFromMemory(buf.Bytes())
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    defer doc.Close()
    if doc.NumPage() != 1 {
        return Status{OK: false, Message: "unexpected page count"}
    }
    return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
