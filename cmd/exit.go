package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
)

// exitError carries a process exit code through cobra's error return.
// main() unwraps it; anything else exits 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitErr(code int, err error) error {
	if err == nil {
		err = eris.Errorf("exit %d", code)
	}
	return &exitError{code: code, err: err}
}

// writeReport marshals a report envelope as indented JSON to stdout, or to
// path when non-empty. Reports are written even for degraded and failed
// runs; only the exit code distinguishes them.
func writeReport(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal report")
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write report %s", path)
	}
	fmt.Printf("Report written to %s\n", path)
	return nil
}
