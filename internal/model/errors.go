package model

import "errors"

var (
	// ErrCodeRequired is returned when an execution request is missing the code field.
	ErrCodeRequired = errors.New("code is required")

	// ErrCodeEmpty is returned when the submitted code is blank after trimming.
	ErrCodeEmpty = errors.New("code must not be empty")

	// ErrExecutionDisabled is returned when code execution is administratively disabled.
	ErrExecutionDisabled = errors.New("code execution is disabled")

	// ErrRateLimited is returned when a client sends execution requests faster than the cooldown allows.
	ErrRateLimited = errors.New("too many requests, please wait")
)
