package adminapi

import (
	"context"

	"google.golang.org/grpc"
)

// AdminClient calls chat.AdminService with the JSON codec.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) CreateUser(ctx context.Context, in *CreateUserRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, "CreateUser", in, opts)
}

func (c *AdminClient) GetUser(ctx context.Context, in *GetUserRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, "GetUser", in, opts)
}

func (c *AdminClient) UpdateUser(ctx context.Context, in *UpdateUserRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, "UpdateUser", in, opts)
}

func (c *AdminClient) DeleteUser(ctx context.Context, in *DeleteUserRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "DeleteUser", in, opts)
}

func (c *AdminClient) ListUsers(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*UsersResponse, error) {
	return invoke[UsersResponse](ctx, c.cc, "ListUsers", in, opts)
}

func (c *AdminClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*Message, error) {
	return invoke[Message](ctx, c.cc, "SendMessage", in, opts)
}

func (c *AdminClient) ListMessages(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c.cc, "ListMessages", in, opts)
}

func (c *AdminClient) ListMessagesByUser(ctx context.Context, in *ListMessagesByUserRequest, opts ...grpc.CallOption) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c.cc, "ListMessagesByUser", in, opts)
}

func (c *AdminClient) UpdateMessage(ctx context.Context, in *UpdateMessageRequest, opts ...grpc.CallOption) (*Message, error) {
	return invoke[Message](ctx, c.cc, "UpdateMessage", in, opts)
}

func (c *AdminClient) DeleteMessage(ctx context.Context, in *DeleteMessageRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "DeleteMessage", in, opts)
}

func (c *AdminClient) GetRooms(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*RoomsResponse, error) {
	return invoke[RoomsResponse](ctx, c.cc, "GetRooms", in, opts)
}

func (c *AdminClient) SearchMessages(ctx context.Context, in *SearchMessagesRequest, opts ...grpc.CallOption) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c.cc, "SearchMessages", in, opts)
}
