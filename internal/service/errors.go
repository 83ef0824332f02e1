package service

import "errors"

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPlanAccessDenied     = errors.New("access denied to this plan")
	ErrPlanNotEditable      = errors.New("plan can no longer be changed")
	ErrInvalidTransition    = errors.New("invalid plan status transition")
	ErrRaceNotFound         = errors.New("race not found")
	ErrWeekNotFound         = errors.New("week not found")
	ErrDayNotFound          = errors.New("day not found")
	ErrActivityNotFound     = errors.New("activity not found")
	ErrActivityAccessDenied = errors.New("access denied to this activity")
	ErrUploadNotFound       = errors.New("uploaded file not found")
	ErrValidationFailed     = errors.New("validation failed")
)
