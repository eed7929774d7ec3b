package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// attrs is the subset of original_source/client.py's attributes-file format
// this CLI still honors: a "message:", then two lines later "window_size:"
// and "timeout:" (the file's second line, "maximum_msg_size:", belongs to
// the receiver side and is ignored here). The attributes file is external
// collaborator glue, not part of the protocol core.
type attrs struct {
	Message    string
	WindowSize int
	Timeout    time.Duration
}

func parseAttrsFile(path string) (attrs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return attrs{}, fmt.Errorf("reading attributes file %q: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) < 4 {
		return attrs{}, fmt.Errorf("attributes file %q is missing required lines", path)
	}

	message, err := attrField(lines[0])
	if err != nil {
		return attrs{}, fmt.Errorf("parsing message line: %w", err)
	}
	message = strings.Trim(strings.TrimSpace(message), `"'`)

	windowField, err := attrField(lines[2])
	if err != nil {
		return attrs{}, fmt.Errorf("parsing window_size line: %w", err)
	}
	windowSize, err := strconv.Atoi(strings.TrimSpace(windowField))
	if err != nil {
		return attrs{}, fmt.Errorf("window_size is not an integer: %w", err)
	}

	timeoutField, err := attrField(lines[3])
	if err != nil {
		return attrs{}, fmt.Errorf("parsing timeout line: %w", err)
	}
	timeoutSeconds, err := strconv.ParseFloat(strings.TrimSpace(timeoutField), 64)
	if err != nil {
		return attrs{}, fmt.Errorf("timeout is not a number: %w", err)
	}

	return attrs{
		Message:    message,
		WindowSize: windowSize,
		Timeout:    time.Duration(timeoutSeconds * float64(time.Second)),
	}, nil
}

func attrField(line string) (string, error) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("expected a key:value line, got %q", line)
	}
	return parts[1], nil
}
