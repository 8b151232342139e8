package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"runtime"
	"snapshot-baseline/internal/compare"
	"snapshot-baseline/internal/verdict"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

type ManifestEntry struct {
	BaselinePath string            `json:"baselinePath"`
	ActualPath   string            `json:"actualPath"`
	DiffPath     string            `json:"diffPath"`
	Policy       *verdict.Document `json:"policy,omitempty"`
}

type ManifestOutput struct {
	Result *compare.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

type comparator interface {
	CompareOrCreateBaseline(ctx context.Context, request compare.Request) (*compare.Result, error)
}

func readManifest(path string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read manifest: %w", err)
	}

	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, xerrors.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return entries, nil
}

// groupByBaseline returns entry indexes grouped by baseline location in order
// of first appearance. Entries of one group must run one after another since
// the first of them may create the baseline the others compare against.
func groupByBaseline(entries []ManifestEntry) [][]int {
	var groups [][]int
	index := map[string]int{}
	for i, entry := range entries {
		g, ok := index[entry.BaselinePath]
		if !ok {
			g = len(groups)
			index[entry.BaselinePath] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func compareAll(ctx context.Context, c comparator, entries []ManifestEntry, defaultPolicy verdict.Policy) []ManifestOutput {
	outputs := make([]ManifestOutput, len(entries))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for _, group := range groupByBaseline(entries) {
		eg.Go(func() error {
			for _, i := range group {
				outputs[i] = compareEntry(ctx, c, entries[i], defaultPolicy)
			}
			return nil
		})
	}
	_ = eg.Wait()

	return outputs
}

func compareEntry(ctx context.Context, c comparator, entry ManifestEntry, defaultPolicy verdict.Policy) ManifestOutput {
	policy := defaultPolicy
	if entry.Policy != nil {
		p, err := entry.Policy.Policy()
		if err != nil {
			return ManifestOutput{Error: err.Error(), Reason: "InvalidRequest"}
		}
		policy = p
	}

	result, err := c.CompareOrCreateBaseline(ctx, compare.Request{
		BaselinePath: entry.BaselinePath,
		ActualPath:   entry.ActualPath,
		DiffPath:     entry.DiffPath,
		Policy:       policy,
	})
	if err != nil {
		return ManifestOutput{Error: err.Error(), Reason: reason(err)}
	}
	return ManifestOutput{Result: result}
}

func exitCode(outputs []ManifestOutput) int {
	code := exitPassed
	for _, output := range outputs {
		switch {
		case output.Result == nil:
			return exitEngineError
		case !output.Result.Passed:
			code = exitFailed
		}
	}
	return code
}

func runManifest(ctx context.Context, c comparator, path string, defaultPolicy verdict.Policy, stdout io.Writer, logger *slog.Logger) int {
	entries, err := readManifest(path)
	if err != nil {
		logger.Error("invalid manifest", "error", err)
		return exitEngineError
	}

	outputs := compareAll(ctx, c, entries, defaultPolicy)

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(outputs); err != nil {
		logger.Error("failed to encode results", "error", err)
		return exitEngineError
	}

	return exitCode(outputs)
}
