// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("audit session not found")
	ErrRegistryClosed  = errors.New("audit registry closed")
)

// ConfigurationError rejects audit parameters before any worker starts
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid audit configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid audit configuration: %s: %s", e.Field, e.Reason)
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SampleFormatError rejects a submitted sample whose shape does not match the
// session's audit method. Index is the position of the offending sample in
// the submission, or -1 when the whole submission is wrong.
type SampleFormatError struct {
	Index  int
	Reason string
}

func (e *SampleFormatError) Error() string {
	if e.Index < 0 {
		return "invalid sample: " + e.Reason
	}
	return fmt.Sprintf("invalid sample %d: %s", e.Index, e.Reason)
}

// InternalComputationError describes a statistic that cannot be computed,
// such as a zero-margin contest. It is reported as a failed verdict.
type InternalComputationError struct {
	Reason string
	Err    error
}

func (e *InternalComputationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *InternalComputationError) Unwrap() error {
	return e.Err
}
