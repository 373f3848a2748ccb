package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// ============================================================================
// OUTPUT
// ============================================================================

var (
	heading    = color.New(color.FgCyan, color.Bold)
	subheading = color.New(color.FgYellow)
	faint      = color.New(color.Faint)
	success    = color.New(color.FgGreen)
)

// output returns the --out file, or the command's stdout when path is empty.
func output(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// writeJSON writes compact JSON, or indented JSON for the "pretty" format.
func writeJSON(w io.Writer, v interface{}, format string) error {
	var (
		out []byte
		err error
	)
	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
