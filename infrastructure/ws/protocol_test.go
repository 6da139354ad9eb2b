package ws

import (
	"testing"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/stretchr/testify/require"
)

func TestDecodeCommand(t *testing.T) {
	conn := domain.ConnectionID("c1")
	tests := []struct {
		name     string
		raw      string
		expected domain.Command
	}{
		{
			name:     "join room",
			raw:      `{"type":"join-room","data":{"room":"random"}}`,
			expected: domain.JoinRoom{Conn: conn, Room: "random"},
		},
		{
			name:     "send public",
			raw:      `{"type":"send-public","data":{"content":"hi all"}}`,
			expected: domain.SendPublic{Conn: conn, Content: "hi all"},
		},
		{
			name:     "send private",
			raw:      `{"type":"send-private","data":{"recipient":"bob","content":"psst"}}`,
			expected: domain.SendPrivate{Conn: conn, Recipient: "bob", Content: "psst"},
		},
		{
			name:     "legacy chat message",
			raw:      `{"type":"chat-message","data":{"content":"hi all"}}`,
			expected: domain.SendPublic{Conn: conn, Content: "hi all"},
		},
		{
			name:     "legacy private message",
			raw:      `{"type":"private-message","data":{"to":"bob","message":"psst"}}`,
			expected: domain.SendPrivate{Conn: conn, Recipient: "bob", Content: "psst"},
		},
		{
			name:     "typing without data",
			raw:      `{"type":"typing"}`,
			expected: domain.Typing{Conn: conn},
		},
		{
			name:     "stop typing",
			raw:      `{"type":"stop-typing"}`,
			expected: domain.StopTyping{Conn: conn},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			cmd, err := DecodeCommand(conn, []byte(tt.raw))
			req.NoError(err)
			req.Equal(tt.expected, cmd)
		})
	}
}

func TestDecodeCommand_Rejects_Bad_Frames(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"dance"}`,
		`{"type":"send-public"}`,
		`{"type":"send-private","data":["bob"]}`,
		`{"type":"join-room","data":"random"}`,
	} {
		_, err := DecodeCommand("c1", []byte(raw))
		require.ErrorIs(t, err, errors.ErrValidation, raw)
	}
}

func TestEncodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    event.Event
		expected string
	}{
		{
			name:     "room list",
			event:    event.RoomList{Rooms: []domain.RoomName{"general", "random"}},
			expected: `{"type":"room-list","data":["general","random"]}`,
		},
		{
			name:     "message",
			event:    event.Message{Text: "alice: hi"},
			expected: `{"type":"message","data":"alice: hi"}`,
		},
		{
			name:     "private message",
			event:    event.PrivateMessage{From: "bob", Message: "psst"},
			expected: `{"type":"private-message","data":{"from":"bob","message":"psst"}}`,
		},
		{
			name:     "empty online users is still a list",
			event:    event.OnlineUsers{Room: "general"},
			expected: `{"type":"online-users","data":[]}`,
		},
		{
			name:     "clear view carries no data",
			event:    event.ClearView{},
			expected: `{"type":"clear-view"}`,
		},
		{
			name:     "stop typing carries no data",
			event:    event.StopTyping{},
			expected: `{"type":"stop-typing"}`,
		},
		{
			name:     "fatal error",
			event:    event.Error{Code: "validation", Message: "bad nickname", Fatal: true},
			expected: `{"type":"error","data":{"code":"validation","message":"bad nickname","fatal":true}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			raw, err := EncodeEvent(tt.event)
			req.NoError(err)
			req.JSONEq(tt.expected, string(raw))
		})
	}
}
