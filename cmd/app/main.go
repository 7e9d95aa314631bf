package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"
    "github.com/urfave/cli/v2"

    "github.com/local/tealpdf/internal/api"
    cfgpkg "github.com/local/tealpdf/internal/config"
    "github.com/local/tealpdf/internal/converter"
    "github.com/local/tealpdf/internal/filetype"
    "github.com/local/tealpdf/internal/imageops"
    "github.com/local/tealpdf/internal/limiter"
    logpkg "github.com/local/tealpdf/internal/logger"
    "github.com/local/tealpdf/internal/metrics"
    "github.com/local/tealpdf/internal/pagecount"
    "github.com/local/tealpdf/internal/pdfops"
    "github.com/local/tealpdf/internal/statuscheck"
    "github.com/local/tealpdf/internal/tempfs"
)

func main() {
    app := &cli.App{
        Name:  "tealpdf",
        Usage: "PDF and image processing API",
        Flags: []cli.Flag{
            &cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before reading the environment"},
            &cli.StringFlag{Name: "port", Usage: "listen port, overrides PORT"},
            &cli.StringFlag{Name: "temp-dir", Usage: "workspace root, overrides TEMP_DIR"},
        },
        Action: serve,
        Commands: []*cli.Command{
            {Name: "serve", Usage: "run the HTTP API (default)", Action: serve},
            {Name: "sweep", Usage: "remove stale temp files once and exit", Action: sweep},
        },
    }
    if err := app.Run(os.Args); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}

// load reads .env (if any), the environment and the flags, then starts logging.
func load(c *cli.Context) cfgpkg.Config {
    if err := godotenv.Load(c.String("env-file")); err != nil && !os.IsNotExist(err) {
        fmt.Fprintf(os.Stderr, "env file %s: %v\n", c.String("env-file"), err)
    }
    cfg := cfgpkg.FromEnv()
    if p := c.String("port"); p != "" { cfg.Server.Port = p }
    if d := c.String("temp-dir"); d != "" { cfg.Temp.Dir = d }

    _ = logpkg.Init(logpkg.Options{
        Level:        cfg.Logging.Level,
        Pretty:       cfg.Logging.Pretty,
        File:         cfg.Logging.File,
        MaxSizeMB:    cfg.Logging.MaxSizeMB,
        MaxBackups:   cfg.Logging.MaxBackups,
        MaxAgeDays:   cfg.Logging.MaxAgeDays,
        Compress:     cfg.Logging.Compress,
        SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey:  cfg.Axiom.APIKey,
        AxiomOrgID:   cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush:   cfg.Axiom.FlushInterval,
    })
    return cfg
}

func sweep(c *cli.Context) error {
    cfg := load(c)
    defer logpkg.Close()
    n := tempfs.Sweep(cfg.Temp.Dir, cfg.Temp.MaxAge)
    log.Info().Int("removed", n).Str("dir", cfg.Temp.Dir).Msg("sweep complete")
    return nil
}

func serve(c *cli.Context) error {
    cfg := load(c)
    defer logpkg.Close()
    metrics.Init()

    root, err := tempfs.NewRoot(cfg.Temp.Dir)
    if err != nil {
        return err
    }

    breaker, err := limiter.New(limiter.Options{
        RedisURL:    cfg.Convert.RedisURL,
        BaseBackoff: cfg.Convert.BreakerBaseBackoff,
        MaxBackoff:  cfg.Convert.BreakerMaxBackoff,
    })
    if err != nil {
        log.Warn().Err(err).Msg("redis unavailable; using in-process breaker")
        breaker = limiter.NewMemory(limiter.Options{
            BaseBackoff: cfg.Convert.BreakerBaseBackoff,
            MaxBackoff:  cfg.Convert.BreakerMaxBackoff,
        })
    }
    var redisPing statuscheck.RedisPinger
    if rb, ok := breaker.(*limiter.Redis); ok {
        redisPing = rb
        defer func() { _ = rb.CloseClient() }()
    }

    office := converter.NewLibreOffice(converter.Options{
        Binary:      cfg.Convert.LibreOfficeBin,
        ProfileRoot: root.Dir(),
        MaxWorkers:  cfg.Convert.MaxWorkers,
        Timeout:     cfg.Convert.Timeout,
    })
    gs := converter.NewGhostscript(cfg.Convert.GhostscriptBin, cfg.Convert.Timeout)

    server := api.New(api.Deps{
        Root: root,
        PDF: pdfops.New(pdfops.Deps{
            Pages:       pagecount.New(),
            Office:      office,
            Ghostscript: gs,
            Breaker:     breaker,
        }),
        Images:   imageops.NewSelector(cfg.Image.ParallelStrategies),
        Detector: filetype.New(),
        Status: statuscheck.New(statuscheck.Options{
            Redis:       redisPing,
            LibreOffice: office,
            Ghostscript: gs,
        }),
        MaxUploadMB:    cfg.Server.MaxUploadMB,
        DefaultQuality: cfg.Image.DefaultQuality,
        MaxDimension:   cfg.Image.MaxDimension,
        AllowedOrigins: cfg.Server.AllowedOrigins,
    })

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    go tempfs.Sweeper{
        Dir:      root.Dir(),
        Interval: cfg.Temp.SweepInterval,
        MaxAge:   cfg.Temp.MaxAge,
        OnSweep:  metrics.AddSwept,
    }.Run(ctx)

    srv := &http.Server{
        Addr:         ":" + cfg.Server.Port,
        Handler:      server.Handler(),
        ReadTimeout:  cfg.Server.ReadTimeout,
        WriteTimeout: cfg.Server.WriteTimeout,
    }
    errc := make(chan error, 1)
    go func() {
        log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            errc <- err
        }
    }()

    select {
    case err := <-errc:
        return fmt.Errorf("http server: %w", err)
    case <-ctx.Done():
    }

    // Graceful shutdown
    sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
    defer cancel()
    if err := srv.Shutdown(sctx); err != nil {
        log.Warn().Err(err).Msg("shutdown did not finish cleanly")
    }
    log.Info().Msg("shutdown complete")
    return nil
}
