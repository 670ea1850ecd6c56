package cmd

import "fmt"

// exitError pairs an error with the exit code main.go should use,
// per spec.md §6 ("exit codes: 0 success, 1 generic error, 2 usage
// error, 130 interrupted"). A command that returns a plain error gets
// the generic code 1; RunE handlers that detect a usage problem
// (bad flag combination, missing argument) wrap it with usageErrorf
// instead of relying on cobra's own flag-parse error path, which never
// reaches RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode returns the process exit code e carries, for main.go.
func (e *exitError) ExitCode() int { return e.code }

func usageErrorf(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}
