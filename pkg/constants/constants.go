package constants

import "time"

// Telegram Bot API limits
const (
	// MaxMessageLength is Telegram's hard per-message character limit
	MaxMessageLength = 4096
	// MessageSplitLength is where sendMessage splits long plain-text messages
	MessageSplitLength = 4000
	// MaxUpdatesPerBatch is the largest batch size getUpdates accepts
	MaxUpdatesPerBatch = 100
	// MessageSplitDelay paces consecutive parts of a split message to
	// stay under flood limits
	MessageSplitDelay = 500 * time.Millisecond
)

// Long polling
const (
	// DefaultPollTimeout is the server-side getUpdates long-poll timeout
	DefaultPollTimeout = 50 * time.Second
	// MaxPollTimeout caps the configurable poll timeout so shutdown stays responsive
	MaxPollTimeout = 90 * time.Second
	// PollHTTPGrace is added on top of the poll timeout as the HTTP deadline
	PollHTTPGrace = 10 * time.Second
)

// Transport retry configuration
const (
	// DefaultMaxRetries is the retry budget for transient transport failures
	DefaultMaxRetries = 3
	// DefaultInitialRetryDelay is the delay before the first retry
	DefaultInitialRetryDelay = 500 * time.Millisecond
	// DefaultMaxRetryDelay caps the doubling retry delay
	DefaultMaxRetryDelay = 10 * time.Second
)

// Poll loop recovery
const (
	// PollBackoffInitial is the pause after the first exhausted poll failure
	PollBackoffInitial = 1 * time.Second
	// PollBackoffMax caps the pause between failed poll attempts
	PollBackoffMax = 30 * time.Second
)

// Worker execution
const (
	// DefaultMaxConcurrentHandlers bounds concurrently running actions
	DefaultMaxConcurrentHandlers = 64
)
