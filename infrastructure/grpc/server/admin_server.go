package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/grpc/adminapi"
	"chat-relay/services"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

var _ adminapi.AdminServiceServer = (*AdminServer)(nil)

// AdminServer exposes the admin service over gRPC. Domain errors become status codes here.
type AdminServer struct {
	admin services.IAdminService
	log   *slog.Logger
}

func NewAdminServer(admin services.IAdminService, log *slog.Logger) *AdminServer {
	return &AdminServer{admin: admin, log: log}
}

// NewGRPCServer registers the admin service and the standard health service.
// The returned health server lets the caller flip the serving status on shutdown.
func NewGRPCServer(admin *AdminServer, log *slog.Logger) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(log)))
	adminapi.RegisterAdminServiceServer(grpcServer, admin)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(adminapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	return grpcServer, healthServer
}

// LoggingInterceptor logs every admin call with its outcome.
func LoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("Admin call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start))
		return resp, err
	}
}

func (s *AdminServer) CreateUser(ctx context.Context, req *adminapi.CreateUserRequest) (*adminapi.User, error) {
	identity, err := s.admin.CreateUser(ctx, req.Nickname)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toUser(identity), nil
}

func (s *AdminServer) GetUser(ctx context.Context, req *adminapi.GetUserRequest) (*adminapi.User, error) {
	identity, err := s.admin.GetUser(ctx, req.Nickname)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toUser(identity), nil
}

func (s *AdminServer) UpdateUser(ctx context.Context, req *adminapi.UpdateUserRequest) (*adminapi.User, error) {
	identity, err := s.admin.UpdateUser(ctx, req.Nickname, req.NewNickname)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toUser(identity), nil
}

func (s *AdminServer) DeleteUser(ctx context.Context, req *adminapi.DeleteUserRequest) (*adminapi.Empty, error) {
	if err := s.admin.DeleteUser(ctx, req.Nickname); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &adminapi.Empty{}, nil
}

func (s *AdminServer) ListUsers(ctx context.Context, _ *adminapi.Empty) (*adminapi.UsersResponse, error) {
	identities, err := s.admin.ListUsers(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &adminapi.UsersResponse{
		Users: lo.Map(identities, func(identity domain.Identity, _ int) adminapi.User {
			return *toUser(identity)
		}),
	}, nil
}

func (s *AdminServer) SendMessage(ctx context.Context, req *adminapi.SendMessageRequest) (*adminapi.Message, error) {
	message, err := s.admin.SendMessage(ctx, services.SendMessageCommand{
		From:      req.From,
		To:        req.To,
		Room:      domain.RoomName(req.Room),
		Content:   req.Content,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toMessage(message), nil
}

func (s *AdminServer) ListMessages(ctx context.Context, _ *adminapi.Empty) (*adminapi.MessagesResponse, error) {
	messages, err := s.admin.ListMessages(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toMessages(messages), nil
}

func (s *AdminServer) ListMessagesByUser(ctx context.Context, req *adminapi.ListMessagesByUserRequest) (*adminapi.MessagesResponse, error) {
	messages, err := s.admin.ListMessagesByUser(ctx, req.Nickname)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toMessages(messages), nil
}

func (s *AdminServer) UpdateMessage(ctx context.Context, req *adminapi.UpdateMessageRequest) (*adminapi.Message, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	patch := domain.MessagePatch{
		Content:   req.Content,
		Recipient: req.Recipient,
		IsPrivate: req.IsPrivate,
	}
	if req.Room != nil {
		patch.Room = lo.ToPtr(domain.RoomName(*req.Room))
	}
	message, err := s.admin.UpdateMessage(ctx, id, patch)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toMessage(message), nil
}

func (s *AdminServer) DeleteMessage(ctx context.Context, req *adminapi.DeleteMessageRequest) (*adminapi.Empty, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	if err = s.admin.DeleteMessage(ctx, id); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &adminapi.Empty{}, nil
}

func (s *AdminServer) GetRooms(ctx context.Context, _ *adminapi.Empty) (*adminapi.RoomsResponse, error) {
	rooms, err := s.admin.GetRooms(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &adminapi.RoomsResponse{
		Rooms: lo.Map(rooms, func(room domain.RoomName, _ int) string { return string(room) }),
	}, nil
}

func (s *AdminServer) SearchMessages(ctx context.Context, req *adminapi.SearchMessagesRequest) (*adminapi.MessagesResponse, error) {
	messages, err := s.admin.SearchMessages(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toMessages(messages), nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("message id %q: %w", raw, errors.ErrValidation)
	}
	return id, nil
}

func toUser(identity domain.Identity) *adminapi.User {
	return &adminapi.User{
		ID:        identity.ID.String(),
		Nickname:  identity.Nickname,
		CreatedAt: identity.CreatedAt,
	}
}

func toMessage(message domain.Message) *adminapi.Message {
	return &adminapi.Message{
		ID:        message.ID.String(),
		AuthorID:  message.AuthorID.String(),
		Author:    message.Author,
		Content:   message.Content,
		Room:      string(message.Room),
		Recipient: message.Recipient,
		IsPrivate: message.IsPrivate,
		Language:  message.Language,
		CreatedAt: message.CreatedAt,
	}
}

func toMessages(messages []domain.Message) *adminapi.MessagesResponse {
	return &adminapi.MessagesResponse{
		Messages: lo.Map(messages, func(message domain.Message, _ int) adminapi.Message {
			return *toMessage(message)
		}),
	}
}
