// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp is the stream transport to the remote peer: connect with
// retry, deadline-bounded send and receive, and the raw descriptor the
// reactor watches for readability.
package tcp
