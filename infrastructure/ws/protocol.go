// Package ws is the client-facing transport of the relay: one websocket per
// connection, JSON text frames of the form {"type": "...", "data": ...}.
package ws

import (
	"encoding/json"
	"fmt"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

// Inbound frame types.
const (
	JoinRoomType    = "join-room"
	SendPublicType  = "send-public"
	SendPrivateType = "send-private"
	TypingType      = "typing"
	StopTypingType  = "stop-typing"
)

// Frame types of the first web client, still accepted.
const (
	ChatMessageType    = "chat-message"
	PrivateMessageType = "private-message"
)

// Frame is the envelope of every message on the socket, in both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type joinRoomData struct {
	Room string `json:"room"`
}

type chatMessageData struct {
	Content string `json:"content"`
}

type sendPrivateData struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

type privateMessageData struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type privateMessageOut struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

type errorOut struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// DecodeCommand turns an inbound frame into a command of the given connection.
// Malformed frames and unknown types are ErrValidation.
func DecodeCommand(conn domain.ConnectionID, raw []byte) (domain.Command, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %v: %w", err, errors.ErrValidation)
	}
	switch frame.Type {
	case JoinRoomType:
		var data joinRoomData
		if err := decodeData(frame, &data); err != nil {
			return nil, err
		}
		return domain.JoinRoom{Conn: conn, Room: domain.RoomName(data.Room)}, nil
	case SendPublicType, ChatMessageType:
		var data chatMessageData
		if err := decodeData(frame, &data); err != nil {
			return nil, err
		}
		return domain.SendPublic{Conn: conn, Content: data.Content}, nil
	case SendPrivateType:
		var data sendPrivateData
		if err := decodeData(frame, &data); err != nil {
			return nil, err
		}
		return domain.SendPrivate{Conn: conn, Recipient: data.Recipient, Content: data.Content}, nil
	case PrivateMessageType:
		var data privateMessageData
		if err := decodeData(frame, &data); err != nil {
			return nil, err
		}
		return domain.SendPrivate{Conn: conn, Recipient: data.To, Content: data.Message}, nil
	case TypingType:
		return domain.Typing{Conn: conn}, nil
	case StopTypingType:
		return domain.StopTyping{Conn: conn}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q: %w", frame.Type, errors.ErrValidation)
	}
}

func decodeData(frame Frame, target any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%s without data: %w", frame.Type, errors.ErrValidation)
	}
	if err := json.Unmarshal(frame.Data, target); err != nil {
		return fmt.Errorf("%s data: %v: %w", frame.Type, err, errors.ErrValidation)
	}
	return nil
}

// EncodeEvent renders an outbound event as a frame.
func EncodeEvent(e event.Event) ([]byte, error) {
	var data any
	switch evt := e.(type) {
	case event.RoomList:
		data = roomNames(evt.Rooms)
	case event.Message:
		data = evt.Text
	case event.PrivateMessage:
		data = privateMessageOut{From: evt.From, Message: evt.Message}
	case event.OnlineUsers:
		data = nonNil(evt.Nicknames)
	case event.Typing:
		data = evt.Text
	case event.StopTyping, event.ClearView:
	case event.Error:
		data = errorOut{Code: evt.Code, Message: evt.Message, Fatal: evt.Fatal}
	default:
		return nil, fmt.Errorf("unsupported event %T", e)
	}

	frame := Frame{Type: e.Name()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		frame.Data = raw
	}
	return json.Marshal(frame)
}

func roomNames(rooms []domain.RoomName) []string {
	names := make([]string, 0, len(rooms))
	for _, room := range rooms {
		names = append(names, string(room))
	}
	return names
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
