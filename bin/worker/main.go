package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"snapshot-baseline/internal/capture"
	"snapshot-baseline/internal/compare"
	"snapshot-baseline/internal/config"
	"snapshot-baseline/internal/verdict"
	"strings"
	"syscall"

	"github.com/playwright-community/playwright-go"
)

type headers []string

func (h *headers) String() string {
	return strings.Join(*h, ", ")
}

func (h *headers) Set(value string) error {
	name, v, ok := strings.Cut(value, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("invalid header %q, expected 'Name: value'", value)
	}
	*h = append(*h, strings.TrimSpace(name)+": "+strings.TrimSpace(v))
	return nil
}

func (h headers) toMap() map[string]string {
	m := make(map[string]string, len(h))
	for _, header := range h {
		name, value, _ := strings.Cut(header, ": ")
		m[name] = value
	}
	return m
}

// registerCaptureFlags binds the page capture flags; defaults come from the
// environment and then from c.
func registerCaptureFlags(fs *flag.FlagSet, c *capture.PlaywrightConfig) {
	fs.IntVar(&c.ViewportWidth, "viewport-width", config.EnvOrDefaultValue("VIEWPORT_WIDTH", c.ViewportWidth), "Viewport width")
	fs.IntVar(&c.ViewportHeight, "viewport-height", config.EnvOrDefaultValue("VIEWPORT_HEIGHT", c.ViewportHeight), "Viewport height")
	fs.BoolVar(&c.FullPage, "full-page", config.EnvOrDefaultValue("FULL_PAGE", c.FullPage), "Capture the full scrollable page")
	fs.StringVar(&c.MaskColor, "mask-color", config.EnvOrDefaultValue("MASK_COLOR", c.MaskColor), "CSS color painted over masked elements")
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("failed to load environment: %v", err)
	}

	var chromeDevtoolsProtocolURL string
	var callbackURL string
	var policyString string
	var maskSelectors string
	var debug bool
	var requestHeaders headers
	var storageConfig config.StorageConfig
	playwrightConfig := capture.DefaultPlaywrightConfig()
	callbackConfig := DefaultCallbackConfig()

	flag.StringVar(&chromeDevtoolsProtocolURL, "chrome-devtools-protocol-url", config.EnvOrDefaultValue("CHROME_DEVTOOLS_PROTOCOL_URL", ""), "Connect to existing browser via Chrome DevTools Protocol URL (e.g., http://localhost:9222)")
	flag.StringVar(&callbackURL, "callback-url", config.EnvOrDefaultValue("CALLBACK_URL", ""), "Callback URL to send results to")
	flag.StringVar(&policyString, "policy", config.EnvOrDefaultValue("POLICY", "percent:0"), "Pass/fail policy (pixel:<count> or percent:<fraction>)")
	flag.StringVar(&maskSelectors, "mask-selectors", config.EnvOrDefaultValue("MASK_SELECTORS", ""), "Comma separated CSS selectors to mask before capturing")
	registerCaptureFlags(flag.CommandLine, &playwrightConfig)
	callbackConfig.RegisterFlags(flag.CommandLine)
	flag.BoolVar(&debug, "debug", config.EnvOrDefaultValue("DEBUG", false), "Human readable logs")
	flag.Var(&requestHeaders, "H", "Add HTTP header to the captured page request (can be used multiple times, e.g., -H 'Authorization: Bearer token')")
	storageConfig.RegisterFlags(flag.CommandLine)

	flag.Parse()

	args := flag.Args()
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: worker [flags] <url> <baseline> <diff>")
		os.Exit(exitEngineError)
	}

	url := args[0]
	baselinePath := args[1]
	diffPath := args[2]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(os.Stderr, debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	policy, err := verdict.ParsePolicy(policyString)
	if err != nil {
		log.Fatalf("invalid policy: %v", err)
	}

	callbackClient, err := newCallbackClient(callbackConfig)
	if err != nil {
		log.Fatalf("invalid callback configuration: %v", err)
	}

	if chromeDevtoolsProtocolURL != "" {
		playwrightConfig.ChromeDevtoolsProtocolURL = chromeDevtoolsProtocolURL
	} else if err := playwright.Install(&playwright.RunOptions{
		Browsers: []string{"chromium"},
	}); err != nil {
		log.Fatalf("failed to install playwright browsers: %v", err)
	}

	capturer, err := capture.NewPlaywrightCapturer(ctx, playwrightConfig)
	if err != nil {
		log.Fatalf("failed to initialize capturer: %v", err)
	}

	s, err := storageConfig.Open(ctx)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}

	comparator, err := compare.NewComparator(s, config.Logr(logger).WithName("compare"))
	if err != nil {
		log.Fatalf("failed to create comparator: %v", err)
	}

	worker := &Worker{
		Capturer:   capturer,
		Storage:    s,
		Comparator: comparator,
		Policy:     policy,
	}
	worker.CaptureOptions.Headers = requestHeaders.toMap()
	if maskSelectors != "" {
		for _, selector := range strings.Split(maskSelectors, ",") {
			if selector = strings.TrimSpace(selector); selector != "" {
				worker.CaptureOptions.MaskSelectors = append(worker.CaptureOptions.MaskSelectors, selector)
			}
		}
	}

	output, err := worker.processSnapshot(ctx, url, baselinePath, diffPath)
	if err != nil {
		logger.Error("failed to process snapshot", "url", url, "error", err)
		os.Exit(exitEngineError)
	}

	j, err := encodeOutput(output)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if callbackURL == "" {
		fmt.Println(string(j))
	} else if err := callback(ctx, callbackClient, callbackURL, j); err != nil {
		logger.Error("failed to send callback", "callbackURL", callbackURL, "error", err)
		os.Exit(exitEngineError)
	}

	if !output.Result.Passed {
		os.Exit(exitFailed)
	}
}

const (
	exitFailed      = 1
	exitEngineError = 2
)
