// Package https implements the https:// resolver: a plain GET against the
// reference URL, wrapped in a circuit breaker so a flaky upstream stops
// being hammered every inspection run, with the resolved content cached per
// URL (§5 "Caching strategy").
package https

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"

	"github.com/archi-tools/inspector/internal/cache"
	"github.com/archi-tools/inspector/internal/httpclient"
	"github.com/archi-tools/inspector/pkg/refurl"
	"github.com/archi-tools/inspector/pkg/resolver"
)

const Scheme = "https"

// Resolver fetches reference content over HTTPS. It never versions, since a
// bare URL carries no commit history the engine can diff against.
type Resolver struct {
	client  *http.Client
	headers map[string]string
	cache   cache.Cache
	breaker *gobreaker.CircuitBreaker
	logger  logr.Logger
}

// Option configures a Resolver beyond its required constructor arguments.
type Option func(*Resolver)

// WithLogger attaches logger, used to warn on downgraded transport failures.
func WithLogger(logger logr.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New returns an https:// resolver sending headers with every request and
// caching resolved content in store.
func New(headers map[string]string, store cache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		client:  httpclient.NewClient(httpclient.HTTPSResolverClientConfig()),
		headers: headers,
		cache:   store,
		logger:  logr.Discard(),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "https-resolver",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Scheme() string { return Scheme }

// Resolve GETs ref's full URL (the original's whole-URL-as-cache-key
// behavior). A non-2xx response, and any transport-level failure (timeout,
// connection refused, circuit breaker open), resolves to (nil, nil) with a
// logged warning, matching the original's "warn and treat as absent"
// handling rather than a hard error.
func (r *Resolver) Resolve(ctx context.Context, ref refurl.Reference) (resolver.ResolveResult, error) {
	url := ref.String()

	if r.cache != nil {
		if cached, ok, err := r.cache.Get(ctx, cache.ResolveKey(url)); err == nil && ok {
			return resolver.Content{Bytes: cached}, nil
		}
	}

	body, err := r.breaker.Execute(func() (interface{}, error) {
		return r.fetch(ctx, url)
	})
	if err != nil {
		r.logger.Info("https resolver transport failure, treating as no content", "url", url, "error", err.Error())
		return nil, nil
	}
	content, _ := body.([]byte)
	if content == nil {
		return nil, nil
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, cache.ResolveKey(url), content, 10*time.Minute)
	}
	return resolver.Content{Bytes: content}, nil
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, nil
	}
	return io.ReadAll(resp.Body)
}
