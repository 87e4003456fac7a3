package chathub

import (
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Broadcast is a stored chat message as it travels over the bus. It carries
// no is_self flag: every receiving session derives that from Sender.
type Broadcast struct {
	ID        string    `cbor:"id"`
	RoomID    string    `cbor:"room_id"`
	Sender    string    `cbor:"sender"`
	Type      string    `cbor:"type"`
	Content   string    `cbor:"content"`
	Status    string    `cbor:"status"`
	CreatedAt time.Time `cbor:"created_at"`
}

// envelope is the bus wire format. Origin names the publishing node and is
// only used for diagnostics.
type envelope struct {
	Topic  string    `cbor:"topic"`
	Event  Broadcast `cbor:"event"`
	Origin string    `cbor:"origin"`
}

// Core Deterministic Encoding with nanosecond RFC 3339 timestamps, so
// created_at survives the round trip exactly.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("chathub: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("chathub: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeEnvelope(env envelope) ([]byte, error) {
	return encMode.Marshal(env)
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	err := decMode.Unmarshal(data, &env)
	return env, err
}
