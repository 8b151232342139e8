package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: ghadapter <command> [args...]")
		os.Exit(2)
	}

	cmd := exec.Command(os.Args[1], os.Args[2:]...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "failed to run %s: %v\n", os.Args[1], err)
			os.Exit(2)
		}
		code = exitErr.ExitCode()
	}
	_, _ = os.Stdout.Write(output)

	var result any
	if err := json.Unmarshal(output, &result); err != nil {
		os.Exit(code)
	}

	if githubOutput := os.Getenv("GITHUB_OUTPUT"); githubOutput != "" {
		if err := appendTo(githubOutput, func(w io.Writer) error {
			return writeOutputs(w, result)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write outputs: %v\n", err)
		}
	}

	if stepSummary := os.Getenv("GITHUB_STEP_SUMMARY"); stepSummary != "" {
		if err := appendTo(stepSummary, func(w io.Writer) error {
			_, err := io.WriteString(w, summary(result))
			return err
		}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write step summary: %v\n", err)
		}
	}

	os.Exit(code)
}

func appendTo(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeOutputs writes one name=value line per top-level field. Objects and
// arrays are written as compact JSON, and a batch result becomes "results".
func writeOutputs(w io.Writer, result any) error {
	fields, ok := result.(map[string]any)
	if !ok {
		fields = map[string]any{"results": result}
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buffer bytes.Buffer
	for _, key := range keys {
		value, err := outputValue(fields[key])
		if err != nil {
			return err
		}
		if strings.Contains(value, "\n") {
			fmt.Fprintf(&buffer, "%s<<EOF\n%s\nEOF\n", key, value)
			continue
		}
		fmt.Fprintf(&buffer, "%s=%s\n", key, value)
	}

	_, err := w.Write(buffer.Bytes())
	return err
}

func outputValue(v any) (string, error) {
	switch value := v.(type) {
	case string:
		return value, nil
	case map[string]any, []any:
		j, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(j), nil
	default:
		return fmt.Sprint(value), nil
	}
}

func summary(result any) string {
	switch value := result.(type) {
	case map[string]any:
		return summaryLine(value)
	case []any:
		var b strings.Builder
		for _, entry := range value {
			fields, _ := entry.(map[string]any)
			if inner, ok := fields["result"].(map[string]any); ok {
				b.WriteString(summaryLine(inner))
				continue
			}
			fmt.Fprintf(&b, "- :warning: %v\n", fields["error"])
		}
		return b.String()
	default:
		return ""
	}
}

func summaryLine(fields map[string]any) string {
	status := ":x: failed"
	switch {
	case fields["bootstrapped"] == true:
		status = ":new: baseline created"
	case fields["passed"] == true:
		status = ":white_check_mark: passed"
	}

	line := fmt.Sprintf("- %s `%v`", status, fields["actualPath"])
	if ratio, ok := fields["diffRatio"].(float64); ok && fields["bootstrapped"] != true {
		line += fmt.Sprintf(" (%.4f%% of pixels differ", ratio*100)
		if diffPath, ok := fields["diffPath"].(string); ok && diffPath != "" {
			line += fmt.Sprintf(", diff `%s`", diffPath)
		}
		line += ")"
	}
	return line + "\n"
}
