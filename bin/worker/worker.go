package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"snapshot-baseline/internal/capture"
	"snapshot-baseline/internal/compare"
	"snapshot-baseline/internal/config"
	"snapshot-baseline/internal/retry"
	"snapshot-baseline/internal/storage"
	"snapshot-baseline/internal/verdict"
	"time"

	"golang.org/x/xerrors"
)

type WorkerOutput struct {
	URL    string          `json:"url"`
	Result *compare.Result `json:"result"`
}

type Comparator interface {
	CompareOrCreateBaseline(ctx context.Context, request compare.Request) (*compare.Result, error)
}

type Worker struct {
	Capturer       capture.Capturer
	Storage        storage.Storage
	Comparator     Comparator
	CaptureOptions capture.CaptureOptions
	Policy         verdict.Policy
	Now            func() time.Time
}

// actualLocation follows Snapshot/capture/<url hash>/<timestamp>.png so that
// repeated captures of one page never overwrite each other.
func (w *Worker) actualLocation(url string) string {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	h := sha256.New()
	h.Write([]byte(url))
	urlHash := fmt.Sprintf("%x", h.Sum(nil))[:16]

	return fmt.Sprintf("Snapshot/capture/%s/%s.png", urlHash, now().Format("20060102150405"))
}

func (w *Worker) processSnapshot(ctx context.Context, url string, baselinePath string, diffPath string) (*WorkerOutput, error) {
	screenshot, err := w.Capturer.Capture(ctx, url, w.CaptureOptions)
	if err != nil {
		return nil, xerrors.Errorf("failed to capture %s: %w", url, err)
	}

	actualPath := w.actualLocation(url)
	if _, err := w.Storage.Put(ctx, actualPath, screenshot); err != nil {
		return nil, xerrors.Errorf("failed to upload screenshot: %w", err)
	}

	result, err := w.Comparator.CompareOrCreateBaseline(ctx, compare.Request{
		BaselinePath: baselinePath,
		ActualPath:   actualPath,
		DiffPath:     diffPath,
		Policy:       w.Policy,
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to compare %s: %w", url, err)
	}

	return &WorkerOutput{
		URL:    url,
		Result: result,
	}, nil
}

const (
	retryStrategyExponential = "exponential"
	retryStrategyConstant    = "constant"
)

// CallbackConfig controls how the result is delivered to the callback URL.
type CallbackConfig struct {
	// RetryStrategy is exponential (full jitter between Delay and MaxDelay) or
	// constant (Delay between every attempt).
	RetryStrategy string
	MaxRetries    uint
	Delay         time.Duration
	MaxDelay      time.Duration
	// RetryOn takes envoy x-envoy-retry-on tokens and status codes. Empty means
	// gateway-error,connect-failure,retriable-4xx,per-try-timeout.
	RetryOn       string
	PerTryTimeout time.Duration
}

func DefaultCallbackConfig() CallbackConfig {
	return CallbackConfig{
		RetryStrategy: retryStrategyExponential,
		MaxRetries:    3,
		Delay:         10 * time.Millisecond,
		MaxDelay:      1 * time.Second,
		PerTryTimeout: 1 * time.Second,
	}
}

// RegisterFlags binds the callback flags to fs with CALLBACK_* environment
// variables and then c as defaults.
func (c *CallbackConfig) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.RetryStrategy, "callback-retry-strategy", config.EnvOrDefaultValue("CALLBACK_RETRY_STRATEGY", c.RetryStrategy), "Callback retry strategy (exponential or constant)")
	fs.UintVar(&c.MaxRetries, "callback-max-retries", config.EnvOrDefaultValue("CALLBACK_MAX_RETRIES", c.MaxRetries), "Maximum number of callback retries")
	fs.DurationVar(&c.Delay, "callback-retry-delay", config.EnvOrDefaultValue("CALLBACK_RETRY_DELAY", c.Delay), "Delay between callback attempts, the base delay for exponential")
	fs.DurationVar(&c.MaxDelay, "callback-retry-max-delay", config.EnvOrDefaultValue("CALLBACK_RETRY_MAX_DELAY", c.MaxDelay), "Upper bound of the exponential callback delay")
	fs.StringVar(&c.RetryOn, "callback-retry-on", config.EnvOrDefaultValue("CALLBACK_RETRY_ON", c.RetryOn), "Conditions that retry the callback, in x-envoy-retry-on syntax")
	fs.DurationVar(&c.PerTryTimeout, "callback-per-try-timeout", config.EnvOrDefaultValue("CALLBACK_PER_TRY_TIMEOUT", c.PerTryTimeout), "Timeout of a single callback attempt")
}

func (c CallbackConfig) strategy() (retry.Strategy, error) {
	switch c.RetryStrategy {
	case retryStrategyExponential, "":
		return retry.NewExponentialBackOff(c.Delay, c.MaxDelay, c.MaxRetries, nil), nil
	case retryStrategyConstant:
		return retry.NewConstantBackOff(c.Delay, c.MaxRetries), nil
	default:
		return nil, xerrors.Errorf("unknown retry strategy: %s", c.RetryStrategy)
	}
}

func newCallbackClient(c CallbackConfig) (*http.Client, error) {
	strategy, err := c.strategy()
	if err != nil {
		return nil, err
	}
	retryOn := retry.NewDefaultRetryOn()
	if c.RetryOn != "" {
		retryOn, err = retry.NewRetryOnFromString(c.RetryOn)
		if err != nil {
			return nil, xerrors.Errorf("failed to parse retry conditions: %w", err)
		}
	}

	return &http.Client{
		Transport: &retry.Transport{
			Base:          http.DefaultTransport,
			RetryStrategy: strategy,
			RetryOn:       retryOn,
			PerTryTimeout: c.PerTryTimeout,
		},
	}, nil
}

func callback(ctx context.Context, client *http.Client, callbackURL string, data []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, callbackURL, bytes.NewReader(data))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode >= 300 {
		return xerrors.Errorf("callback responded with %s", response.Status)
	}

	return nil
}

func encodeOutput(output *WorkerOutput) ([]byte, error) {
	j, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal result: %w", err)
	}
	return j, nil
}
