package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"chat-relay/infrastructure/grpc/adminapi"
	"chat-relay/infrastructure/ws"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.AdminAddr == "" || s.Config.WSAddr == "" {
		s.T().Skip("RELAY_ADMIN_ADDR and RELAY_WS_ADDR are required for end-to-end scenarios")
	}
}

func (s *BaseSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// GrpcConn initializes a gRPC connection with logging, colors, and JSON debugging
func (s *BaseSuite) GrpcConn(t *testing.T, name string, addr string) *grpc.ClientConn {
	s.header(t, name)

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))

			// Log full JSON request/response bodies if E2E_DEBUG_JSON is enabled
			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, indent(req))
				if err != nil {
					fmt.Fprintln(&logBuilder, "ERROR:", err)
				} else {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, indent(reply))
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+addr)
	return conn
}

// WithAdmin provides an admin client within a contextual test step
func (s *BaseSuite) WithAdmin(name string, fn func(ctx context.Context, client *adminapi.AdminClient)) {
	conn := s.GrpcConn(s.T(), name, s.Config.AdminAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fn(ctx, adminapi.NewAdminClient(conn))
}

// Dial opens a chat connection for nickname, closed with the test.
func (s *BaseSuite) Dial(nickname string) *websocket.Conn {
	s.header(s.T(), "Connecting "+nickname)
	target := url.URL{Scheme: "ws", Host: s.Config.WSAddr, Path: "/ws", RawQuery: "nickname=" + url.QueryEscape(nickname)}
	conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
	s.Require().NoError(err, "Failed to connect to websocket at "+target.String())
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadUntil skips frames until one of frameType carries the given text.
func (s *BaseSuite) ReadUntil(conn *websocket.Conn, frameType, text string) {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(10 * time.Second)))
	for {
		var frame ws.Frame
		s.Require().NoError(conn.ReadJSON(&frame))
		var data string
		if frame.Type == frameType && json.Unmarshal(frame.Data, &data) == nil && data == text {
			return
		}
	}
}

func indent(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(raw)
}
