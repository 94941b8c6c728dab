package rota

import "errors"

var (
	ErrInvalidScope     = errors.New("rota: invalid scope")
	ErrInvalidWeekStart = errors.New("rota: invalid week start")
	ErrInvalidShiftID   = errors.New("rota: invalid shift id")
	ErrInvalidShiftDate = errors.New("rota: shift date outside its week")
	ErrInvalidShiftTime = errors.New("rota: invalid shift time")
	ErrWeekNotFound     = errors.New("rota: week not found")
	ErrShiftNotFound    = errors.New("rota: shift not found")
	ErrForbidden        = errors.New("rota: caller is not allowed to modify the rota")
)
