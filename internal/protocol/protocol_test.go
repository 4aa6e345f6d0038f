package protocol_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewire/pulsewire/internal/event"
	"github.com/pulsewire/pulsewire/internal/protocol"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "object", data: `{"type":"chat_message","message":"hi"}`},
		{name: "empty object", data: `{}`},
		{name: "not json", data: `{"type":`, wantErr: true},
		{name: "array", data: `[1,2]`, wantErr: true},
		{name: "bare string", data: `"hello"`, wantErr: true},
		{name: "null", data: `null`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := protocol.Decode([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, fields)
		})
	}
}

func TestDispatchKey(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]any
		field   string
		def     string
		want    string
		wantErr bool
	}{
		{name: "present", fields: map[string]any{"type": "chat_message"}, field: "type", def: "x", want: "chat_message"},
		{name: "absent falls back", fields: map[string]any{}, field: "type", def: "chat_message", want: "chat_message"},
		{name: "empty falls back", fields: map[string]any{"action": ""}, field: "action", def: "increment", want: "increment"},
		{name: "wrong type", fields: map[string]any{"type": 7.0}, field: "type", def: "x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := protocol.DispatchKey(tt.fields, tt.field, tt.def)
			if tt.wantErr {
				assert.ErrorIs(t, err, protocol.ErrBadField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		wantErr error
	}{
		{name: "ok", msg: "hello"},
		{name: "empty", msg: "", wantErr: protocol.ErrEmptyMessage},
		{name: "at limit", msg: strings.Repeat("a", 1000)},
		{name: "over limit", msg: strings.Repeat("a", 1001), wantErr: protocol.ErrMessageTooLong},
		{name: "multibyte counted in runes", msg: strings.Repeat("世", 1000)},
		{name: "multibyte over limit", msg: strings.Repeat("世", 1001), wantErr: protocol.ErrMessageTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := protocol.ValidateMessage(tt.msg, 1000)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEncode_KindToWireType(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		ev       event.Event
		wireType string
		check    func(t *testing.T, frame map[string]any)
	}{
		{
			name:     "chat message carries username and timestamp",
			ev:       protocol.ChatMessage("alice", "hi there", at),
			wireType: "chat_message",
			check: func(t *testing.T, frame map[string]any) {
				assert.Equal(t, "alice", frame["username"])
				assert.Equal(t, "hi there", frame["message"])
				assert.Equal(t, "2024-05-01T12:00:00Z", frame["timestamp"])
			},
		},
		{
			name:     "user joined becomes a notification",
			ev:       protocol.UserJoined(),
			wireType: "notification",
			check: func(t *testing.T, frame map[string]any) {
				assert.Equal(t, "A user joined the room", frame["message"])
				assert.Equal(t, "user_joined", frame["event"])
			},
		},
		{
			name:     "user left becomes a notification",
			ev:       protocol.UserLeft(),
			wireType: "notification",
			check: func(t *testing.T, frame map[string]any) {
				assert.Equal(t, "user_left", frame["event"])
			},
		},
		{
			name:     "counter update keeps action and value",
			ev:       protocol.CounterUpdate("decrement", 3),
			wireType: "counter_update",
			check: func(t *testing.T, frame map[string]any) {
				assert.Equal(t, "decrement", frame["action"])
				assert.Equal(t, float64(3), frame["value"])
			},
		},
		{
			name:     "counter snapshot shares the counter_update type",
			ev:       protocol.CounterSnapshot(42),
			wireType: "counter_update",
			check: func(t *testing.T, frame map[string]any) {
				assert.Equal(t, float64(42), frame["counter"])
				assert.Equal(t, "Connected to counter", frame["message"])
				assert.NotContains(t, frame, "action")
			},
		},
		{
			name:     "user count",
			ev:       protocol.UserCount(4),
			wireType: "user_count_update",
			check: func(t *testing.T, frame map[string]any) {
				assert.Equal(t, float64(4), frame["count"])
			},
		},
		{
			name:     "pushed notification fills defaults",
			ev:       protocol.Notification("", "deploy done", ""),
			wireType: "notification",
			check: func(t *testing.T, frame map[string]any) {
				assert.Equal(t, "Notification", frame["title"])
				assert.Equal(t, "normal", frame["priority"])
				assert.Equal(t, "deploy done", frame["message"])
			},
		},
		{
			name:     "error event",
			ev:       protocol.ErrorEvent("Invalid message"),
			wireType: "error",
			check: func(t *testing.T, frame map[string]any) {
				assert.Equal(t, "Invalid message", frame["message"])
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := protocol.Encode(tt.ev)
			require.NoError(t, err)

			var frame map[string]any
			require.NoError(t, json.Unmarshal(data, &frame))
			assert.Equal(t, tt.wireType, frame["type"])
			tt.check(t, frame)
		})
	}
}

func TestEncode_UnknownKind(t *testing.T) {
	_, err := protocol.Encode(event.New("mystery", nil))
	assert.ErrorIs(t, err, protocol.ErrUnknownKind)
}

func TestSupported(t *testing.T) {
	for _, kind := range protocol.Kinds() {
		assert.True(t, protocol.Supported(kind), kind)
	}
	assert.False(t, protocol.Supported("mystery"))
}
