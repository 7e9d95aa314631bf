package config

import (
    "os"
    "path/filepath"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
    Port            string
    MaxUploadMB     int64
    ReadTimeout     time.Duration
    WriteTimeout    time.Duration
    ShutdownTimeout time.Duration
    AllowedOrigins  []string
}

// TempConfig controls request workspaces and the janitor that sweeps them.
type TempConfig struct {
    Dir           string
    SweepInterval time.Duration
    MaxAge        time.Duration
}

// ConvertConfig defines external converter behavior and limits.
type ConvertConfig struct {
    LibreOfficeBin     string
    GhostscriptBin     string
    MaxWorkers         int
    Timeout            time.Duration
    BreakerBaseBackoff time.Duration
    BreakerMaxBackoff  time.Duration
    RedisURL           string
}

// ImageConfig tunes image processing.
type ImageConfig struct {
    ParallelStrategies bool
    DefaultQuality     int
    MaxDimension       int // per-side cap on resize targets
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Server  ServerConfig
    Temp    TempConfig
    Convert ConvertConfig
    Image   ImageConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/tealpdf.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_tealpdf",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.Server = ServerConfig{
        Port:            getEnv("PORT", "8000"),
        MaxUploadMB:     int64(parseInt(getEnv("MAX_UPLOAD_MB", "100"), 100)),
        ReadTimeout:     parseDuration(getEnv("READ_TIMEOUT", "60s"), 60*time.Second),
        WriteTimeout:    parseDuration(getEnv("WRITE_TIMEOUT", "10m"), 10*time.Minute),
        ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
        AllowedOrigins:  parseList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
    }
    if cfg.Server.MaxUploadMB <= 0 { cfg.Server.MaxUploadMB = 100 }

    cfg.Temp = TempConfig{
        Dir:           getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "tealpdf")),
        SweepInterval: parseDuration(getEnv("TEMP_SWEEP_INTERVAL", "10m"), 10*time.Minute),
        MaxAge:        parseDuration(getEnv("TEMP_MAX_AGE", "1h"), time.Hour),
    }

    cfg.Convert = ConvertConfig{
        LibreOfficeBin:     getEnv("LIBREOFFICE_BIN", "soffice"),
        GhostscriptBin:     getEnv("GHOSTSCRIPT_BIN", "gs"),
        MaxWorkers:         parseInt(getEnv("CONVERT_MAX_WORKERS", "2"), 2),
        Timeout:            parseDuration(getEnv("CONVERT_TIMEOUT", "180s"), 180*time.Second),
        BreakerBaseBackoff: parseDuration(getEnv("BREAKER_BASE_BACKOFF", "30s"), 30*time.Second),
        BreakerMaxBackoff:  parseDuration(getEnv("BREAKER_MAX_BACKOFF", "5m"), 5*time.Minute),
        RedisURL:           getEnv("REDIS_URL", ""),
    }
    if cfg.Convert.MaxWorkers <= 0 { cfg.Convert.MaxWorkers = 1 }

    cfg.Image = ImageConfig{
        ParallelStrategies: parseBool(getEnv("IMAGE_PARALLEL_STRATEGIES", "true")),
        DefaultQuality:     parseInt(getEnv("IMAGE_DEFAULT_QUALITY", "85"), 85),
        MaxDimension:       parseInt(getEnv("IMAGE_MAX_DIMENSION", "10000"), 10000),
    }
    if cfg.Image.MaxDimension <= 0 { cfg.Image.MaxDimension = 10000 }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func parseList(s string) []string {
    var out []string
    for _, part := range strings.Split(s, ",") {
        if p := strings.TrimSpace(part); p != "" {
            out = append(out, p)
        }
    }
    return out
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
