package reminder

import "errors"

var (
	ErrRecordNotFound          = errors.New("reminder: record not found")
	ErrAlreadyRecorded         = errors.New("reminder: record already exists for shift and kind")
	ErrNotificationUnavailable = errors.New("reminder: notification port unavailable")
)
