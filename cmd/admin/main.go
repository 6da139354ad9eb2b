package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"chat-relay/infrastructure/grpc/adminapi"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Config struct {
	Addr    string        `envconfig:"ADMIN_ADDR" default:"localhost:9090"`
	Timeout time.Duration `envconfig:"ADMIN_TIMEOUT" default:"10s"`
	// ADMIN_COLOURS enables colorized headers and errors
	Colours bool `envconfig:"ADMIN_COLOURS" default:"true"`
}

const usage = `usage: admin <command> [arguments]

  users                                   list identities
  user-create <nickname>                  create an identity
  user-get <nickname>                     show an identity
  user-rename <nickname> <new-nickname>   rename an identity
  user-delete <nickname>                  delete an identity
  messages [nickname]                     list messages, of one author if given
  send -from <nickname> [-to <nickname>] [-room <room>] <content>
  message-edit -id <id> [-content <c>] [-room <r>]
  message-delete <id>                     delete a message
  rooms                                   list rooms holding messages
  search [-limit <n>] <query>             full-text search over messages
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	color.Enable = config.Colours

	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return nil
	}

	conn, err := grpc.NewClient(config.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", config.Addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	cli := &cli{client: adminapi.NewAdminClient(conn), out: out}
	return cli.execute(ctx, args[0], args[1:])
}

type cli struct {
	client *adminapi.AdminClient
	out    io.Writer
}

func (c *cli) execute(ctx context.Context, command string, args []string) error {
	switch command {
	case "users":
		resp, err := c.client.ListUsers(ctx, &adminapi.Empty{})
		if err != nil {
			return err
		}
		c.printUsers(resp.Users...)
	case "user-create", "user-get", "user-delete":
		if len(args) != 1 {
			return fmt.Errorf("%s expects a nickname", command)
		}
		return c.user(ctx, command, args[0])
	case "user-rename":
		if len(args) != 2 {
			return fmt.Errorf("%s expects the current and the new nickname", command)
		}
		user, err := c.client.UpdateUser(ctx, &adminapi.UpdateUserRequest{Nickname: args[0], NewNickname: args[1]})
		if err != nil {
			return err
		}
		c.printUsers(*user)
	case "messages":
		var resp *adminapi.MessagesResponse
		var err error
		if len(args) > 0 {
			resp, err = c.client.ListMessagesByUser(ctx, &adminapi.ListMessagesByUserRequest{Nickname: args[0]})
		} else {
			resp, err = c.client.ListMessages(ctx, &adminapi.Empty{})
		}
		if err != nil {
			return err
		}
		c.printMessages(resp.Messages...)
	case "send":
		return c.send(ctx, args)
	case "message-edit":
		return c.edit(ctx, args)
	case "message-delete":
		if len(args) != 1 {
			return fmt.Errorf("%s expects a message id", command)
		}
		if _, err := c.client.DeleteMessage(ctx, &adminapi.DeleteMessageRequest{ID: args[0]}); err != nil {
			return err
		}
		fmt.Fprintln(c.out, color.Green.Sprintf("Message %s deleted", args[0]))
	case "rooms":
		resp, err := c.client.GetRooms(ctx, &adminapi.Empty{})
		if err != nil {
			return err
		}
		table := newTable(c.out, "Room")
		for _, room := range resp.Rooms {
			table.Append([]string{room})
		}
		table.Render()
	case "search":
		return c.search(ctx, args)
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
	return nil
}

func (c *cli) user(ctx context.Context, command, nickname string) error {
	switch command {
	case "user-create":
		user, err := c.client.CreateUser(ctx, &adminapi.CreateUserRequest{Nickname: nickname})
		if err != nil {
			return err
		}
		c.printUsers(*user)
	case "user-get":
		user, err := c.client.GetUser(ctx, &adminapi.GetUserRequest{Nickname: nickname})
		if err != nil {
			return err
		}
		c.printUsers(*user)
	case "user-delete":
		if _, err := c.client.DeleteUser(ctx, &adminapi.DeleteUserRequest{Nickname: nickname}); err != nil {
			return err
		}
		fmt.Fprintln(c.out, color.Green.Sprintf("User %s deleted", nickname))
	}
	return nil
}

func (c *cli) send(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	from := fs.String("from", "", "author nickname")
	to := fs.String("to", "", "recipient nickname, makes the message private")
	room := fs.String("room", "", "room, defaults to general")
	if err := fs.Parse(args); err != nil {
		return err
	}
	message, err := c.client.SendMessage(ctx, &adminapi.SendMessageRequest{
		From:      *from,
		To:        *to,
		Room:      *room,
		Content:   strings.Join(fs.Args(), " "),
		IsPrivate: *to != "",
	})
	if err != nil {
		return err
	}
	c.printMessages(*message)
	return nil
}

func (c *cli) edit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("message-edit", flag.ContinueOnError)
	id := fs.String("id", "", "message id")
	content := fs.String("content", "", "new content")
	room := fs.String("room", "", "new room")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req := &adminapi.UpdateMessageRequest{ID: *id}
	// Only flags given on the command line are part of the patch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "content":
			req.Content = content
		case "room":
			req.Room = room
		}
	})
	message, err := c.client.UpdateMessage(ctx, req)
	if err != nil {
		return err
	}
	c.printMessages(*message)
	return nil
}

func (c *cli) search(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum number of hits")
	if err := fs.Parse(args); err != nil {
		return err
	}
	resp, err := c.client.SearchMessages(ctx, &adminapi.SearchMessagesRequest{
		Query: strings.Join(fs.Args(), " "),
		Limit: *limit,
	})
	if err != nil {
		return err
	}
	c.printMessages(resp.Messages...)
	return nil
}

func (c *cli) printUsers(users ...adminapi.User) {
	table := newTable(c.out, "ID", "Nickname", "Created at")
	for _, user := range users {
		table.Append([]string{user.ID, user.Nickname, user.CreatedAt.Format(time.RFC3339)})
	}
	table.Render()
}

func (c *cli) printMessages(messages ...adminapi.Message) {
	table := newTable(c.out, "ID", "At", "Room", "Author", "To", "Lang", "Content")
	for _, m := range messages {
		table.Append([]string{
			m.ID,
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			m.Room,
			m.Author,
			m.Recipient,
			m.Language,
			m.Content,
		})
	}
	table.Render()
	fmt.Fprintln(c.out, color.Gray.Sprintf("%s message(s)", strconv.Itoa(len(messages))))
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	for i, h := range header {
		header[i] = color.Bold.Sprint(h)
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
