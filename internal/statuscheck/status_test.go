package statuscheck

import (
    "context"
    "errors"
    "testing"

    "github.com/stretchr/testify/assert"
)

type fakeTool struct {
    ok      bool
    version string
}

func (f fakeTool) Available() bool { return f.ok }
func (f fakeTool) Version() string { return f.version }

type fakeRedis struct{ err error }

func (f fakeRedis) Ping(context.Context) error { return f.err }

func TestSummary(t *testing.T) {
    c := New(Options{
        Redis:       fakeRedis{err: errors.New("dial tcp: connection refused")},
        LibreOffice: fakeTool{ok: true, version: "LibreOffice 7.6.4.1"},
        Ghostscript: fakeTool{ok: false},
    })
    s := c.Summary(context.Background())

    assert.Equal(t, Status{OK: true, Message: "LibreOffice 7.6.4.1"}, s.LibreOffice)
    assert.Equal(t, Status{OK: false, Message: "Binary not found"}, s.Ghostscript)
    assert.Equal(t, Status{OK: false, Message: "dial tcp: connection refused"}, s.Redis)
    assert.True(t, s.MuPDF.OK, s.MuPDF.Message)
}

func TestRedisNotConfigured(t *testing.T) {
    s := New(Options{}).Summary(context.Background())
    assert.Equal(t, "not configured", s.Redis.Message)
    assert.False(t, s.LibreOffice.OK)
}
