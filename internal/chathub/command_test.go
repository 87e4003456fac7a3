package chathub_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/chathub"
)

func TestParseCommand_Kinds(t *testing.T) {
	cmd, err := chathub.ParseCommand([]byte(`{"event":"auth","token":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, chathub.AuthCommand{Token: "abc"}, cmd)

	cmd, err = chathub.ParseCommand([]byte(`{"event":"message","type":"product","content":"p-1"}`))
	require.NoError(t, err)
	assert.Equal(t, chathub.MessageCommand{Type: "product", Content: "p-1"}, cmd)

	cmd, err = chathub.ParseCommand([]byte(`{"event":"update","type":"sign","content":"doc-1"}`))
	require.NoError(t, err)
	assert.Equal(t, chathub.UpdateCommand{Type: "sign", Content: "doc-1"}, cmd)
	assert.Equal(t, "update", cmd.Name())
}

func TestParseCommand_Fetch(t *testing.T) {
	cmd, err := chathub.ParseCommand([]byte(`{"event":"fetch"}`))
	require.NoError(t, err)
	fetch := cmd.(chathub.FetchCommand)
	assert.Nil(t, fetch.Size)
	assert.Nil(t, fetch.Offset)
	assert.Nil(t, fetch.Anchor)

	cmd, err = chathub.ParseCommand([]byte(`{"event":"fetch","size":2,"offset":4,"direction":"after","time":"2025-05-01T12:00:00.5+03:00"}`))
	require.NoError(t, err)
	fetch = cmd.(chathub.FetchCommand)
	require.NotNil(t, fetch.Size)
	assert.Equal(t, 2, *fetch.Size)
	assert.Equal(t, 4, *fetch.Offset)
	assert.Equal(t, "after", fetch.Direction)
	require.NotNil(t, fetch.Anchor)
	assert.True(t, fetch.Anchor.Equal(time.Date(2025, 5, 1, 9, 0, 0, 500000000, time.UTC)))

	cmd, err = chathub.ParseCommand([]byte(`{"event":"fetch","time":"2025-05-01T09:00:00.250"}`))
	require.NoError(t, err)
	assert.True(t, cmd.(chathub.FetchCommand).Anchor.Equal(time.Date(2025, 5, 1, 9, 0, 0, 250000000, time.UTC)))
}

func TestParseCommand_Errors(t *testing.T) {
	tests := map[string]string{
		"not json":       `hello`,
		"array":          `[1,2]`,
		"no event":       `{"token":"abc"}`,
		"unknown event":  `{"event":"dance"}`,
		"fractional":     `{"event":"fetch","size":1.5}`,
		"bad time":       `{"event":"fetch","time":"last week"}`,
		"numeric token":  `{"event":"auth","token":7}`,
		"object content": `{"event":"message","type":"text","content":{"a":1}}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := chathub.ParseCommand([]byte(raw))
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}

	_, err := chathub.ParseCommand([]byte(`{"event":""}`))
	assert.ErrorIs(t, err, chathub.ErrMalformedFrame)
}
