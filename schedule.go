// Copyright (C) 2020 Christopher E. Miller
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

// All timers here advance only on the engine's 1 Hz tick.

// countdown fires once when its remaining seconds reach zero.
type countdown struct {
	remaining int
	armed     bool
}

func (c *countdown) arm(seconds int) {
	c.remaining = seconds
	c.armed = true
}

func (c *countdown) cancel() {
	*c = countdown{}
}

func (c *countdown) active() bool {
	return c.armed
}

// tick advances one second and reports whether it fired.
func (c *countdown) tick() bool {
	if !c.armed {
		return false
	}
	c.remaining--
	if c.remaining <= 0 {
		c.cancel()
		return true
	}
	return false
}

// stopwatch counts seconds while running.
type stopwatch struct {
	elapsed int
	running bool
}

func (s *stopwatch) start() {
	s.elapsed = 0
	s.running = true
}

func (s *stopwatch) stop() {
	*s = stopwatch{}
}

// reset zeroes the count without changing whether it runs.
func (s *stopwatch) reset() {
	s.elapsed = 0
}

// tick advances one second and returns the elapsed count.
func (s *stopwatch) tick() int {
	if s.running {
		s.elapsed++
	}
	return s.elapsed
}

// reconnectOffsets are the seconds after a disconnect at which a
// reconnect is attempted.
var reconnectOffsets = buildReconnectOffsets()

func buildReconnectOffsets() []int {
	offsets := []int{10}
	add := func(steps, delta int) {
		for i := 0; i < steps; i++ {
			offsets = append(offsets, offsets[len(offsets)-1]+delta)
		}
	}
	add(5, 66)   // to 340s
	add(10, 326) // to 1h
	add(4, 900)  // to 2h
	add(4, 1800) // to 4h
	add(4, 3600) // to 8h
	return offsets
}

// reconnectSchedule is dormant until armed; it then counts elapsed seconds
// and is due exactly on the reconnectOffsets.
type reconnectSchedule struct {
	stopwatch
	ceiling int
}

func (r *reconnectSchedule) arm(connectTimeout int) {
	r.ceiling = reconnectOffsets[len(reconnectOffsets)-1] + connectTimeout
	r.start()
}

func (r *reconnectSchedule) cancel() {
	*r = reconnectSchedule{}
}

func (r *reconnectSchedule) active() bool {
	return r.running
}

// due reports whether an attempt is scheduled at the current elapsed second.
func (r *reconnectSchedule) due() bool {
	if !r.running {
		return false
	}
	for _, offset := range reconnectOffsets {
		if offset == r.elapsed {
			return true
		}
		if offset > r.elapsed {
			break
		}
	}
	return false
}

// exceeded reports whether the schedule ran past its last attempt.
func (r *reconnectSchedule) exceeded() bool {
	return r.running && r.elapsed >= r.ceiling
}

const (
	recoveryMaxAttempts = 76
	recoveryFastTries   = 20
	recoveryMediumTries = 28
)

// nickRecovery periodically asks for the primary nickname back while the
// alternate is in use. request and response count NICK attempts and their
// rejections; they must stay equal.
type nickRecovery struct {
	timer    countdown
	active   bool
	attempts int
	request  int
	response int
}

func recoveryInterval(attempts int) int {
	switch {
	case attempts < recoveryFastTries:
		return 60
	case attempts < recoveryMediumTries:
		return 300
	default:
		return 900
	}
}

func (r *nickRecovery) start() {
	*r = nickRecovery{active: true}
	r.timer.arm(recoveryInterval(0))
}

func (r *nickRecovery) cancel() {
	*r = nickRecovery{}
}

// tick reports whether the next attempt is due.
func (r *nickRecovery) tick() bool {
	return r.active && r.timer.tick()
}

// attempt records one NICK request. It returns false when recovery has
// given up instead.
func (r *nickRecovery) attempt() bool {
	if r.attempts >= recoveryMaxAttempts {
		r.cancel()
		return false
	}
	r.attempts++
	r.request++
	r.timer.arm(recoveryInterval(r.attempts))
	return true
}

// rejected records a 433/437 reply. It returns false if the counters fell
// out of lockstep, cancelling recovery.
func (r *nickRecovery) rejected() bool {
	if !r.active {
		return true
	}
	r.response++
	if r.response != r.request {
		r.cancel()
		return false
	}
	return true
}
