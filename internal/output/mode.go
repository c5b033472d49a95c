package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"text/tabwriter"
)

// OutputMode is the process-wide output mode set from global flags.
type OutputMode string

const (
	OutputModeText OutputMode = "text"
	OutputModeJSON OutputMode = "json"
)

var outputMode atomic.Value

func init() {
	outputMode.Store(OutputModeText)
}

// SetOutputMode switches between JSON and text output.
func SetOutputMode(json bool) {
	if json {
		outputMode.Store(OutputModeJSON)
		return
	}
	outputMode.Store(OutputModeText)
}

// GetOutputMode returns the current mode, text if unset.
func GetOutputMode() OutputMode {
	if m, ok := outputMode.Load().(OutputMode); ok {
		return m
	}
	return OutputModeText
}

// IsJSON reports whether JSON output is active.
func IsJSON() bool {
	return GetOutputMode() == OutputModeJSON
}

// ErrorPayload is the structured error shape for JSON and YAML output.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func newErrorPayload(err error, code int) ErrorPayload {
	return ErrorPayload{
		Error:   "error",
		Message: err.Error(),
		Details: map[string]any{"code": code},
	}
}

// OutputJSON writes v to stdout as indented JSON.
func OutputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// OutputJSONError writes err as an ErrorPayload to stdout.
func OutputJSONError(err error, code int) error {
	return OutputJSON(newErrorPayload(err, code))
}

// OutputTable prints aligned columns to stderr.
func OutputTable(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(os.Stderr, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// OutputList prints one item per line to stderr.
func OutputList(items []string) {
	for _, item := range items {
		fmt.Fprintln(os.Stderr, item)
	}
}
