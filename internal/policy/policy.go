// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package policy resolves the effective session timeout and warning lead time.
//
// The effective timeout is the session length actually applied after weighing
// a per-user override against the system-wide default and maximum. The
// warning lead time is how long before forced sign-out the warning overlay is
// shown.
package policy

import "time"

const (
	// DefaultTimeoutMinutes is used whenever no usable preference is
	// available (missing profile, unreadable store, zero values). The
	// monitor must never block on configuration availability.
	DefaultTimeoutMinutes = 30

	// shortSessionCutoff is the timeout at or below which the warning lead
	// switches from the flat value to a proportional one. A flat 5-minute
	// warning on a 2-minute session would fire before the session starts.
	shortSessionCutoff = 5 * time.Minute

	// standardWarningLead is the flat warning lead for normal-length sessions.
	standardWarningLead = 5 * time.Minute

	// minWarningLead floors the proportional lead so very short sessions
	// still give the user a usable warning window.
	minWarningLead = 30 * time.Second
)

// SessionPolicy is the resolved session length for the signed-in user.
type SessionPolicy struct {
	// TimeoutMinutes must be positive; Timeout falls back to the default
	// when it is not.
	TimeoutMinutes int
}

// Resolve combines a per-user override with the system default and maximum.
// The override wins when it is set (> 0) and within the allowed maximum; an
// override above the maximum is ignored rather than clamped, so a stale or
// tampered preference cannot extend the session beyond what administrators
// allow. A zero maxAllowed means no cap.
func Resolve(override, systemDefault, maxAllowed int) SessionPolicy {
	if override > 0 && (maxAllowed <= 0 || override <= maxAllowed) {
		return SessionPolicy{TimeoutMinutes: override}
	}
	if systemDefault > 0 {
		if maxAllowed > 0 && systemDefault > maxAllowed {
			systemDefault = maxAllowed
		}
		return SessionPolicy{TimeoutMinutes: systemDefault}
	}
	return SessionPolicy{TimeoutMinutes: DefaultTimeoutMinutes}
}

// Timeout converts the policy into a concrete duration.
func (p SessionPolicy) Timeout() time.Duration {
	if p.TimeoutMinutes <= 0 {
		return DefaultTimeoutMinutes * time.Minute
	}
	return time.Duration(p.TimeoutMinutes) * time.Minute
}

// WarningLead returns how long before forced sign-out the warning is shown.
//
// Sessions of 5 minutes or less warn at the 50%-remaining mark, floored at 30
// seconds; longer sessions get the flat 5-minute lead. The lead is always
// clamped to the timeout itself so the countdown can never display more time
// than actually remains (the floor would otherwise exceed the full timeout
// for sub-minute sessions).
func WarningLead(timeout time.Duration) time.Duration {
	var lead time.Duration
	if timeout <= shortSessionCutoff {
		lead = timeout / 2
		if lead < minWarningLead {
			lead = minWarningLead
		}
	} else {
		lead = standardWarningLead
	}
	if lead > timeout {
		lead = timeout
	}
	return lead
}
