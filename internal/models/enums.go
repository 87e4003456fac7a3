package models

// MessageType is the kind of a chat message.
type MessageType string

const (
	MessageText         MessageType = "text"
	MessageProduct      MessageType = "product"
	MessageAnnouncement MessageType = "announcement"
	MessageDocument     MessageType = "document"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageProduct, MessageAnnouncement, MessageDocument:
		return true
	}
	return false
}

// IsReference reports whether Content holds a resolvable reference
// rather than text.
func (t MessageType) IsReference() bool {
	return t.Valid() && t != MessageText
}

// MessageStatus is the delivery status of a message. It only moves forward.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageRead:
		return 3
	}
	return 0
}

func (s MessageStatus) Valid() bool { return s.rank() > 0 }

// Advances reports whether moving from s to next is a forward transition.
func (s MessageStatus) Advances(next MessageStatus) bool {
	return next.Valid() && next.rank() > s.rank()
}

// DocumentStatus is shared by documents and per-signer signing rows.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentSigned   DocumentStatus = "signed"
	DocumentRejected DocumentStatus = "rejected"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentPending, DocumentSigned, DocumentRejected:
		return true
	}
	return false
}
