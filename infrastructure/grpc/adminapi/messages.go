package adminapi

import "time"

type Empty struct{}

type User struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateUserRequest struct {
	Nickname string `json:"nickname"`
}

type GetUserRequest struct {
	Nickname string `json:"nickname"`
}

type UpdateUserRequest struct {
	Nickname    string `json:"nickname"`
	NewNickname string `json:"new_nickname"`
}

type DeleteUserRequest struct {
	Nickname string `json:"nickname"`
}

type UsersResponse struct {
	Users []User `json:"users"`
}

type Message struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Room      string    `json:"room"`
	Recipient string    `json:"recipient,omitempty"`
	IsPrivate bool      `json:"is_private"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest stores a message on behalf of an existing user.
// An empty room means the default room.
type SendMessageRequest struct {
	From      string `json:"from"`
	To        string `json:"to,omitempty"`
	Room      string `json:"room,omitempty"`
	Content   string `json:"content"`
	IsPrivate bool   `json:"is_private"`
}

type ListMessagesByUserRequest struct {
	Nickname string `json:"nickname"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

// UpdateMessageRequest is a partial update: absent fields are left untouched.
type UpdateMessageRequest struct {
	ID        string  `json:"id"`
	Content   *string `json:"content,omitempty"`
	Recipient *string `json:"recipient,omitempty"`
	Room      *string `json:"room,omitempty"`
	IsPrivate *bool   `json:"is_private,omitempty"`
}

type DeleteMessageRequest struct {
	ID string `json:"id"`
}

type RoomsResponse struct {
	Rooms []string `json:"rooms"`
}

type SearchMessagesRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}
