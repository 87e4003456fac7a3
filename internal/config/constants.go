package config

import "time"

const (
	// Pagination
	DefaultPageSize   = 50
	DefaultPageOffset = 0
	MaxPageSize       = 200

	// Session
	DefaultAuthTimeout  = 10 * time.Second
	DefaultSendBuffer   = 256
	DefaultMaxFrameSize = 64 * 1024
	DefaultCommandRate  = 20.0
	DefaultCommandBurst = 40
	DefaultWriteWait    = 10 * time.Second
	DefaultPongWait     = 60 * time.Second

	DefaultTopicPrefix     = "chat_"
	DefaultIdentityClaim   = "user_id"
	DefaultResourceTimeout = 5 * time.Second
)

// Inbound command and outbound event discriminators.
const (
	EventAuth    = "auth"
	EventFetch   = "fetch"
	EventMessage = "message"
	EventUpdate  = "update"
	EventError   = "error"
)

const (
	DirectionBefore = "before"
	DirectionAfter  = "after"
)

// Reply statuses for auth and update events.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)
