// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the single-threaded event reactor: a timer
// registry, an epoll-backed readiness poller, and the loop that drives
// both. Everything registered with a Loop runs on the goroutine that
// called Run.
package reactor
