// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so the relay's
// time-dependent behavior can be tested without sleeping.
//
// The relay reads the clock in three places: computing per-connection
// read deadlines, timestamping capture frames, and driving the
// periodic statistics log. Production wiring passes [Real]; tests pass
// [Fake] and move time forward with [FakeClock.Advance].
//
// A goroutine that registers a ticker or timer on a FakeClock races
// the test that advances it. [FakeClock.WaitForTimers] closes that
// race:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go stats.Run(ctx, fake, time.Minute, logger)
//	fake.WaitForTimers(1)
//	fake.Advance(time.Minute)
package clock
