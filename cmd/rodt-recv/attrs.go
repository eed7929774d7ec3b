package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// parseAttrsFile reproduces original_source/server.py's handle_file_input:
// only the file's second line, "maximum_msg_size:<n>", is relevant to the
// receiver.
func parseAttrsFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading attributes file %q: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("attributes file %q is missing the maximum_msg_size line", path)
	}
	parts := strings.SplitN(lines[1], ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected a key:value line, got %q", lines[1])
	}
	return strconv.Atoi(strings.TrimSpace(parts[1]))
}
