package pipeline

import "errors"

// Error kinds from spec.md §7. Each is a sentinel wrapped with context via
// fmt.Errorf("...: %w", ErrX) so callers can match with errors.Is.
var (
	// ErrInvalidInput surfaces to the caller; the failing step leaves itself
	// unchanged. Raised on dataset merge failure, sample_factor length
	// mismatch, or a required modality being absent.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidParameter surfaces to the caller. Raised when a parameter is
	// outside its declared domain (unknown block_method, missing weight
	// entry, unknown policy name, ...).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrStaleReference is raised by an explicit add_selection call with
	// indices that exceed the filtered cell count. On upstream change,
	// CustomSelections instead drops stale selections silently.
	ErrStaleReference = errors.New("stale reference")

	// ErrResourceLoadFailure surfaces to the caller; CellLabelling reports
	// empty results for the affected reference rather than failing the run.
	ErrResourceLoadFailure = errors.New("resource load failure")

	// ErrStateMismatch surfaces; the engine refuses to proceed. Raised when
	// restored state's declared cell count differs from loaded inputs.
	ErrStateMismatch = errors.New("state mismatch")
)
