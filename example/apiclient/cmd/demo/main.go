package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/solstice-labs/courier-go/apiclient"
)

const metricsAddr = ":2112"

type post struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId" validate:"required"`
	Title  string `json:"title" validate:"required"`
}

type listPostsParams struct {
	UserID int
}

func main() {
	ctx := context.Background()

	// 1. Structured logging + Prometheus metrics for every attempt.
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(zerolog.DebugLevel)

	registry := prometheus.NewRegistry()
	collector, err := apiclient.NewPrometheusCollector(registry)
	if err != nil {
		log.Fatalf("Failed to create metrics collector: %v", err)
	}

	// 2. Build the client: retry with backoff, per-attempt timeout,
	//    circuit breaker and client-side rate limiting.
	client, err := apiclient.New(
		apiclient.WithBaseURL("https://jsonplaceholder.typicode.com"),
		apiclient.WithServiceName("demo"),
		apiclient.WithTimeout(5*time.Second),
		apiclient.WithRetryStrategy(apiclient.RetryStrategy{
			MaxRetries: 3,
			BaseDelay:  200 * time.Millisecond,
			Jitter:     0.2,
		}),
		apiclient.WithBreaker(apiclient.DefaultBreakerConfig()),
		apiclient.WithRateLimit(apiclient.RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             5,
			WaitOnLimit:       true,
		}),
		apiclient.WithLogger(apiclient.NewZerologLogger(zl)),
		apiclient.WithMetrics(collector),
		apiclient.WithUserAgent("courier-demo/1.0"),
		apiclient.WithRequestHook(apiclient.HeaderHook("X-Demo", "courier")),
	)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	// 3. Typed endpoints over the client.
	listPosts := apiclient.Endpoint[listPostsParams, []post]{
		Method: http.MethodGet,
		PathFunc: func(listPostsParams) string {
			return "/posts"
		},
	}
	createPost := apiclient.Endpoint[post, post]{
		Method:   http.MethodPost,
		Path:     "/posts",
		Request:  apiclient.NewStructValidator(),
		Response: apiclient.NewStructValidator(),
	}

	// 4. Serve the Prometheus metrics.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		log.Printf("Prometheus metrics on %s/metrics", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Metrics server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	fmt.Println("Demo app started, press Ctrl+C to stop...")
	runOnce(ctx, client, listPosts, createPost)

	for {
		select {
		case <-ticker.C:
			runOnce(ctx, client, listPosts, createPost)
		case <-sigChan:
			fmt.Println("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Metrics server shutdown error: %v", err)
			}
			return
		}
	}
}

func runOnce(
	ctx context.Context,
	client *apiclient.Client,
	listPosts apiclient.Endpoint[listPostsParams, []post],
	createPost apiclient.Endpoint[post, post],
) {
	// Typed list call with query parameters.
	posts, resp, err := apiclient.Call(ctx, client, listPosts, listPostsParams{UserID: 1},
		&apiclient.RequestOptions{
			Query: apiclient.NewQueryValues().Add("userId", 1),
		})
	if err != nil {
		log.Printf("List posts failed: %v", err)
	} else {
		log.Printf("Fetched %d posts in %s (attempt %d)", len(posts), resp.Duration, resp.Attempts)
	}

	// Typed create call with request and response validation.
	created, _, err := apiclient.Call(ctx, client, createPost, post{
		UserID: 1,
		Title:  "hello from courier",
	}, nil)
	if err != nil {
		log.Printf("Create post failed: %v", err)
	} else {
		log.Printf("Created post %d", created.ID)
	}

	// Untyped access for one-off calls.
	raw, err := client.Get(ctx, "/users/1", nil)
	if err != nil {
		log.Printf("Get user failed: %v", err)
		return
	}
	log.Printf("User payload: %d bytes, status %d", len(raw.Body), raw.StatusCode)
}
