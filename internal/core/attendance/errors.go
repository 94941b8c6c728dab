package attendance

import "errors"

var (
	ErrInvalidWorkerID      = errors.New("attendance: invalid worker id")
	ErrInvalidEntryID       = errors.New("attendance: invalid entry id")
	ErrInvalidBreakID       = errors.New("attendance: invalid break id")
	ErrInvalidGeoEventKind  = errors.New("attendance: invalid geo event kind")
	ErrAlreadyOpen          = errors.New("attendance: worker already has an open entry")
	ErrAlreadyOnBreak       = errors.New("attendance: entry already has an open break")
	ErrEntryNotFound        = errors.New("attendance: entry not found")
	ErrBreakNotFound        = errors.New("attendance: break not found")
	ErrEntryClosed          = errors.New("attendance: entry is closed")
	ErrBreakNotOpen         = errors.New("attendance: break is not open")
	ErrOpenBreakPresent     = errors.New("attendance: entry has an open break")
	ErrForbidden            = errors.New("attendance: caller is not allowed to act on this entry")
	ErrComplianceIncomplete = errors.New("attendance: compliance requirements incomplete")
)
