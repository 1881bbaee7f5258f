package alias

import "fmt"

// RewriteError reports an output file that could not be read or written. It
// aborts the rewrite pass.
type RewriteError struct {
	Path string // Output file
	Op   string // "stat", "read" or "write"
	Err  error
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("alias: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RewriteError) Unwrap() error {
	return e.Err
}
