package retry

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

// Transport retries requests according to RetryOn. Requests with a body must
// be rewindable through GetBody, which http.NewRequest sets for in-memory
// readers.
type Transport struct {
	Base          http.RoundTripper
	RetryStrategy Strategy
	RetryOn       *On
	// PerTryTimeout bounds a single attempt including reading the headers. Zero disables it.
	PerTryTimeout time.Duration
}

type contextKey string

const retryCountContextKey contextKey = "retryCountKey"

func getRetryCount(ctx context.Context) uint {
	v := ctx.Value(retryCountContextKey)

	i, ok := v.(uint)
	if !ok {
		return 0
	}

	return i
}

func setRetryCount(ctx context.Context, retryCount uint) context.Context {
	return context.WithValue(ctx, retryCountContextKey, retryCount)
}

func (t *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	retryCount := getRetryCount(request.Context())
	sleep, exceeded := t.retryStrategy().Sleep(retryCount)

	response, err := t.attempt(request)
	if err != nil {
		// Cancellation of the whole request is never retried.
		if request.Context().Err() != nil {
			return nil, request.Context().Err()
		}
		if !exceeded && t.RetryOn != nil && t.RetryOn.CheckError(err) {
			return t.retry(request, retryCount, sleep)
		}
		return nil, err
	}
	if !exceeded && t.RetryOn != nil && t.RetryOn.CheckResponse(response) {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
		return t.retry(request, retryCount, sleep)
	}
	return response, nil
}

func (t *Transport) attempt(request *http.Request) (*http.Response, error) {
	if t.PerTryTimeout <= 0 {
		return t.base().RoundTrip(request)
	}

	ctx, cancel := context.WithTimeout(request.Context(), t.PerTryTimeout)
	response, err := t.base().RoundTrip(request.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	response.Body = &cancelOnClose{ReadCloser: response.Body, cancel: cancel}
	return response, nil
}

func (t *Transport) retry(request *http.Request, retryCount uint, sleep time.Duration) (*http.Response, error) {
	timer := time.NewTimer(sleep)
	select {
	case <-request.Context().Done():
		timer.Stop()
		return nil, request.Context().Err()
	case <-timer.C:
	}

	next := request.Clone(setRetryCount(request.Context(), retryCount+1))
	if request.Body != nil && request.Body != http.NoBody {
		if request.GetBody == nil {
			return nil, xerrors.Errorf("cannot retry %s %s: request body is not rewindable", request.Method, request.URL)
		}
		body, err := request.GetBody()
		if err != nil {
			return nil, xerrors.Errorf("failed to rewind request body: %w", err)
		}
		next.Body = body
	}
	return t.RoundTrip(next)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) retryStrategy() Strategy {
	if t.RetryStrategy != nil {
		return t.RetryStrategy
	}
	return NewNever()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
