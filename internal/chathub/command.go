package chathub

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/config"
)

// Update subtypes.
const (
	UpdateSign      = "sign"
	UpdateDelivered = "delivered"
	UpdateRead      = "read"
)

// Command is one inbound client frame. The set of commands is closed: each
// kind dispatches to its own method of commandHandler, so a new kind does
// not compile until the session handles it.
type Command interface {
	Name() string
	dispatch(ctx context.Context, h commandHandler)
}

type commandHandler interface {
	handleAuth(ctx context.Context, cmd AuthCommand)
	handleFetch(ctx context.Context, cmd FetchCommand)
	handleMessage(ctx context.Context, cmd MessageCommand)
	handleUpdate(ctx context.Context, cmd UpdateCommand)
}

// AuthCommand carries the bearer token; it must be the first frame.
type AuthCommand struct {
	Token string `json:"token"`
}

// FetchCommand asks for a page of history. Nil Size and Offset take the
// session defaults; an empty Direction means before.
type FetchCommand struct {
	Size      *int       `json:"size"`
	Offset    *int       `json:"offset"`
	Direction string     `json:"direction"`
	Anchor    *time.Time `json:"-"`
}

// MessageCommand posts a message to the session's room.
type MessageCommand struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// UpdateCommand carries a subtype: sign takes a document id as Content,
// delivered and read take a message id.
type UpdateCommand struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (AuthCommand) Name() string    { return config.EventAuth }
func (FetchCommand) Name() string   { return config.EventFetch }
func (MessageCommand) Name() string { return config.EventMessage }
func (UpdateCommand) Name() string  { return config.EventUpdate }

func (c AuthCommand) dispatch(ctx context.Context, h commandHandler)    { h.handleAuth(ctx, c) }
func (c FetchCommand) dispatch(ctx context.Context, h commandHandler)   { h.handleFetch(ctx, c) }
func (c MessageCommand) dispatch(ctx context.Context, h commandHandler) { h.handleMessage(ctx, c) }
func (c UpdateCommand) dispatch(ctx context.Context, h commandHandler)  { h.handleUpdate(ctx, c) }

// ErrMalformedFrame is returned for frames that are not a JSON object with
// an event field.
var ErrMalformedFrame = apperr.Validation("malformed frame")

// ParseCommand decodes a text frame. Frames that are not JSON objects, or
// lack an event, yield ErrMalformedFrame; unknown events and mistyped
// fields yield other validation errors.
func ParseCommand(data []byte) (Command, error) {
	var head struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.Event == "" {
		return nil, ErrMalformedFrame
	}

	switch head.Event {
	case config.EventAuth:
		var cmd AuthCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, apperr.Validation("invalid auth command")
		}
		return cmd, nil

	case config.EventFetch:
		var raw struct {
			FetchCommand
			Time *string `json:"time"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, apperr.Validation("size and offset must be non-negative integers")
		}
		cmd := raw.FetchCommand
		if raw.Time != nil && *raw.Time != "" {
			anchor, err := parseAnchor(*raw.Time)
			if err != nil {
				return nil, apperr.Validation("invalid time")
			}
			cmd.Anchor = &anchor
		}
		return cmd, nil

	case config.EventMessage:
		var cmd MessageCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, apperr.Validation("content must be a non-empty string")
		}
		return cmd, nil

	case config.EventUpdate:
		var cmd UpdateCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, apperr.Validation("invalid update command")
		}
		return cmd, nil
	}

	return nil, apperr.Validation("unknown event " + head.Event)
}

var anchorLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseAnchor accepts RFC 3339 and zone-less ISO 8601 timestamps; the
// latter are taken as UTC.
func parseAnchor(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range anchorLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
