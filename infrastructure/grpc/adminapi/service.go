package adminapi

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "chat.AdminService"

// AdminServiceServer is implemented by the relay.
type AdminServiceServer interface {
	CreateUser(context.Context, *CreateUserRequest) (*User, error)
	GetUser(context.Context, *GetUserRequest) (*User, error)
	UpdateUser(context.Context, *UpdateUserRequest) (*User, error)
	DeleteUser(context.Context, *DeleteUserRequest) (*Empty, error)
	ListUsers(context.Context, *Empty) (*UsersResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*Message, error)
	ListMessages(context.Context, *Empty) (*MessagesResponse, error)
	ListMessagesByUser(context.Context, *ListMessagesByUserRequest) (*MessagesResponse, error)
	UpdateMessage(context.Context, *UpdateMessageRequest) (*Message, error)
	DeleteMessage(context.Context, *DeleteMessageRequest) (*Empty, error)
	GetRooms(context.Context, *Empty) (*RoomsResponse, error)
	SearchMessages(context.Context, *SearchMessagesRequest) (*MessagesResponse, error)
}

func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&AdminServiceDesc, srv)
}

var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateUser", AdminServiceServer.CreateUser),
		unary("GetUser", AdminServiceServer.GetUser),
		unary("UpdateUser", AdminServiceServer.UpdateUser),
		unary("DeleteUser", AdminServiceServer.DeleteUser),
		unary("ListUsers", AdminServiceServer.ListUsers),
		unary("SendMessage", AdminServiceServer.SendMessage),
		unary("ListMessages", AdminServiceServer.ListMessages),
		unary("ListMessagesByUser", AdminServiceServer.ListMessagesByUser),
		unary("UpdateMessage", AdminServiceServer.UpdateMessage),
		unary("DeleteMessage", AdminServiceServer.DeleteMessage),
		unary("GetRooms", AdminServiceServer.GetRooms),
		unary("SearchMessages", AdminServiceServer.SearchMessages),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chat/admin.json",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the method handler the way generated code does, for any request type.
func unary[Req, Resp any](method string, call func(AdminServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AdminServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
