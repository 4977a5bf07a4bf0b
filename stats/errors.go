// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package stats

import "errors"

var (
	ErrZeroMargin = errors.New("reported margin is zero")
	ErrNoBallots  = errors.New("no ballots cast")
	ErrTolerance  = errors.New("tolerance too large for inflation rate")
	ErrThreshold  = errors.New("threshold too large for reported margin")
)
