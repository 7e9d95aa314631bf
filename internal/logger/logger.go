package logger

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/dustin/go-humanize"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options defines logger initialization parameters.
type Options struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
    Service    string

    // Axiom
    SendToAxiom  bool
    AxiomAPIKey  string
    AxiomOrgID   string
    AxiomDataset string
    AxiomFlush   time.Duration
}

const (
    defaultService = "tealpdf"
    axiomBatchSize = 200
)

var (
    global  = zerolog.Nop()
    sink    *axiomSink
    service = defaultService
)

// Init wires the global zerolog logger: rotating file, stdout (pretty in dev)
// and, when configured, an Axiom forwarder for info level and above.
func Init(opts Options) error {
    if opts.Service != "" {
        service = opts.Service
    }

    var writers []io.Writer
    if opts.File != "" {
        if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
            return fmt.Errorf("create logs dir: %w", err)
        }
        writers = append(writers, &lumberjack.Logger{
            Filename:   opts.File,
            MaxSize:    opts.MaxSizeMB,
            MaxBackups: opts.MaxBackups,
            MaxAge:     opts.MaxAgeDays,
            Compress:   opts.Compress,
        })
    }

    if opts.Pretty {
        writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
    } else {
        writers = append(writers, os.Stdout)
    }

    if opts.SendToAxiom && opts.AxiomAPIKey != "" {
        s, err := newAxiomSink(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
        if err != nil {
            // keep going without Axiom
            fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
        } else {
            sink = s
            writers = append(writers, s)
        }
    }

    zerolog.TimeFieldFormat = time.RFC3339
    lvl, err := zerolog.ParseLevel(opts.Level)
    if err != nil || opts.Level == "" {
        lvl = zerolog.InfoLevel
    }

    global = zerolog.New(io.MultiWriter(writers...)).
        Level(lvl).
        With().Timestamp().Str("service", service).
        Logger()
    log.Logger = global
    return nil
}

// Close flushes the Axiom forwarder, if any.
func Close() {
    if sink != nil {
        _ = sink.Close()
    }
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

// Size renders a byte count for log fields, e.g. "1.2 MB".
func Size(n int64) string {
    if n < 0 {
        n = 0
    }
    return humanize.Bytes(uint64(n))
}

// axiomSink is an io.Writer that batches zerolog JSON lines into Axiom events.
type axiomSink struct {
    client  *axiom.Client
    dataset string
    events  chan axiom.Event
    done    chan struct{}
    wg      sync.WaitGroup
    once    sync.Once
}

func newAxiomSink(token, orgID, dataset string, flushEvery time.Duration) (*axiomSink, error) {
    if dataset == "" {
        dataset = "dev_" + service
    }
    opts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" {
        opts = append(opts, axiom.SetOrganizationID(orgID))
    }
    c, err := axiom.NewClient(opts...)
    if err != nil {
        return nil, err
    }
    if flushEvery <= 0 {
        flushEvery = 10 * time.Second
    }
    s := &axiomSink{
        client:  c,
        dataset: dataset,
        events:  make(chan axiom.Event, 1000),
        done:    make(chan struct{}),
    }
    s.wg.Add(1)
    go s.run(flushEvery)
    return s, nil
}

func (s *axiomSink) Write(p []byte) (int, error) {
    ev := map[string]interface{}{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = map[string]interface{}{"message": string(p), "level": "info"}
    }
    if lvl, _ := ev["level"].(string); lvl == "debug" || lvl == "trace" {
        return len(p), nil
    }
    ev["service"] = service
    if _, ok := ev[ingest.TimestampField]; !ok {
        ev[ingest.TimestampField] = time.Now()
    }
    select {
    case s.events <- axiom.Event(ev):
    default:
        // buffer full, drop
    }
    return len(p), nil
}

func (s *axiomSink) run(flushEvery time.Duration) {
    defer s.wg.Done()
    ticker := time.NewTicker(flushEvery)
    defer ticker.Stop()

    batch := make([]axiom.Event, 0, axiomBatchSize)
    flush := func() {
        if len(batch) == 0 {
            return
        }
        ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        _, _ = s.client.IngestEvents(ctx, s.dataset, batch)
        cancel()
        batch = batch[:0]
    }

    for {
        select {
        case <-s.done:
            flush()
            return
        case <-ticker.C:
            flush()
        case ev := <-s.events:
            batch = append(batch, ev)
            if len(batch) >= axiomBatchSize {
                flush()
            }
        }
    }
}

func (s *axiomSink) Close() error {
    s.once.Do(func() { close(s.done) })
    s.wg.Wait()
    return nil
}
