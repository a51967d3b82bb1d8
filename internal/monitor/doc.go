// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package monitor implements the session activity monitor: an inactivity
// timeout state machine with a warning phase and a live countdown.
//
// A Monitor moves through four phases:
//
//	Idle -> Running -> Warning -> (signed out)
//
// Start enters Running and schedules a warning timer and a sign-out timer
// from the current policy. User activity (throttled to once per second) and
// explicit Extend calls perform a full reset back to Running. When the
// warning timer fires, the monitor enters Warning and a one-second countdown
// begins; when either the countdown reaches zero or the sign-out timer fires,
// the expiry callback is invoked exactly once. Stop tears everything down
// without invoking any callback.
//
// # Usage
//
//	mon := monitor.New(monitor.Config{
//	    Schedule: monitor.FromPolicy(fetchPolicy),
//	    Callbacks: monitor.Callbacks{
//	        OnWarning: showOverlay,
//	        OnTick:    updateCountdown,
//	        OnExpired: signOut,
//	    },
//	})
//	mon.Start()
//	defer mon.Stop()
//
// Feed it activity from the input layer:
//
//	mon.RecordActivity()
//
// All methods are safe for concurrent use. Timer callbacks carry a
// generation token and become inert the moment a reset or teardown bumps the
// generation, so a stale callback can never override a later reset.
package monitor
