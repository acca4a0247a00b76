package pcc

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for store and resolver operations. Callers classify with
// errors.Is.
var (
	// ErrNotFound means a blob or metadata record does not exist. Inside the
	// resolver this is an expected outcome and triggers fallback to the next
	// lookup tier.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a concurrent write raced (e.g. a branch-latest update
	// lost to a newer commit). Retryable.
	ErrConflict = errors.New("conflict")

	// ErrCorrupt means downloaded content did not match its digest. Fatal for
	// that blob; corrupted bytes must never be passed on silently.
	ErrCorrupt = errors.New("corrupt content")
)

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is, or wraps, ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsCorrupt reports whether err is, or wraps, ErrCorrupt.
func IsCorrupt(err error) bool { return errors.Is(err, ErrCorrupt) }

// PartialFailure reports that one or more files or modules failed during an
// operation that otherwise completed. It is a warning, not an abort: a
// degraded snapshot is still persisted and queryable.
type PartialFailure struct {
	Op     string           // "download" or "analyze"
	Failed map[string]error // logical path or module name -> cause
}

func (p *PartialFailure) Error() string {
	names := make([]string, 0, len(p.Failed))
	for name := range p.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s partially failed (%d): %s", p.Op, len(names), strings.Join(names, ", "))
}
