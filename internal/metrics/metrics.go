package metrics

import (
    "net/http"
    "strconv"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tealpdf"

var (
    httpReqs = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "http_requests_total",
            Help:      "HTTP requests by route and status code",
        },
        []string{"route", "status"},
    )

    httpLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: namespace,
            Name:      "http_request_duration_seconds",
            Help:      "HTTP request duration by route",
            Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 180},
        },
        []string{"route"},
    )

    strategyWins = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "compression_strategy_wins_total",
            Help:      "Winning compression strategy by kind (image, pdf)",
        },
        []string{"kind", "strategy"},
    )

    strategyFailures = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "compression_strategy_failures_total",
            Help:      "Compression strategies that errored, by kind and strategy",
        },
        []string{"kind", "strategy"},
    )

    pageCountMethods = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "page_count_method_total",
            Help:      "Page count attempts by method and result (accepted, rejected, failed)",
        },
        []string{"method", "result"},
    )

    conversions = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "conversions_total",
            Help:      "Document conversions by direction, engine and result",
        },
        []string{"direction", "engine", "result"},
    )

    breakerEvents = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "breaker_events_total",
            Help:      "Converter circuit breaker events by engine and action",
        },
        []string{"engine", "action"},
    )

    tempSwept = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "temp_files_swept_total",
            Help:      "Stale temp workspaces removed by the janitor",
        },
    )

    initOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
    initOnce.Do(func() {
        prometheus.MustRegister(httpReqs, httpLatency, strategyWins, strategyFailures,
            pageCountMethods, conversions, breakerEvents, tempSwept)
    })
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveRequest(route string, status int, dur time.Duration) {
    httpReqs.WithLabelValues(route, strconv.Itoa(status)).Inc()
    httpLatency.WithLabelValues(route).Observe(dur.Seconds())
}

func StrategyWon(kind, strategy string)    { strategyWins.WithLabelValues(kind, strategy).Inc() }
func StrategyFailed(kind, strategy string) { strategyFailures.WithLabelValues(kind, strategy).Inc() }

func PageCountAttempt(method, result string) { pageCountMethods.WithLabelValues(method, result).Inc() }

func Conversion(direction, engine string, ok bool) {
    conversions.WithLabelValues(direction, engine, result(ok)).Inc()
}

func BreakerOpened(engine string) { breakerEvents.WithLabelValues(engine, "opened").Inc() }
func BreakerClosed(engine string) { breakerEvents.WithLabelValues(engine, "closed").Inc() }
func BreakerSkipped(engine string) { breakerEvents.WithLabelValues(engine, "skipped").Inc() }

func AddSwept(n int) { tempSwept.Add(float64(n)) }

func result(ok bool) string {
    if ok {
        return "success"
    }
    return "failure"
}
