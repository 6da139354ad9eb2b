// Package sqlite is a SQLite-backed durable store for identities and messages.
// It is a drop-in alternative to the Badger repositories.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, stderrors.New("sqlite path is required")
	}

	normalized := filepath.ToSlash(path)
	dsn := "file:" + normalized + "?cache=shared" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err = s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS identities (
			id TEXT PRIMARY KEY,
			nickname TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			author_id TEXT NOT NULL,
			author TEXT NOT NULL,
			content TEXT NOT NULL,
			room TEXT NOT NULL,
			recipient TEXT NOT NULL DEFAULT '',
			is_private INTEGER NOT NULL DEFAULT 0,
			language TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_author_created ON messages(author_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) FindIdentity(ctx context.Context, nickname string) (domain.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nickname, created_at FROM identities WHERE nickname = ?`, nickname)
	identity, err := scanIdentity(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return domain.Identity{}, fmt.Errorf("identity %q: %w", nickname, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Identity{}, storageErr("find identity", err)
	}
	return identity, nil
}

func (s *Store) FindIdentityByID(ctx context.Context, id uuid.UUID) (domain.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, nickname, created_at FROM identities WHERE id = ?`, id.String())
	identity, err := scanIdentity(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return domain.Identity{}, fmt.Errorf("identity %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Identity{}, storageErr("find identity", err)
	}
	return identity, nil
}

func (s *Store) CreateIdentity(ctx context.Context, identity domain.Identity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identities (id, nickname, created_at) VALUES (?, ?, ?)`,
		identity.ID.String(), identity.Nickname, identity.CreatedAt.UnixNano())
	if isUniqueViolation(err) {
		return fmt.Errorf("nickname %q: %w", identity.Nickname, errors.ErrConflict)
	}
	if err != nil {
		return storageErr("create identity", err)
	}
	return nil
}

func (s *Store) RenameIdentity(ctx context.Context, oldNickname, newNickname string) (domain.Identity, error) {
	identity, err := s.FindIdentity(ctx, oldNickname)
	if err != nil {
		return domain.Identity{}, err
	}
	if oldNickname == newNickname {
		return identity, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE identities SET nickname = ? WHERE nickname = ?`, newNickname, oldNickname)
	if isUniqueViolation(err) {
		return domain.Identity{}, fmt.Errorf("nickname %q: %w", newNickname, errors.ErrConflict)
	}
	if err != nil {
		return domain.Identity{}, storageErr("rename identity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Identity{}, fmt.Errorf("identity %q: %w", oldNickname, errors.ErrNotFound)
	}
	identity.Nickname = newNickname
	return identity, nil
}

func (s *Store) DeleteIdentity(ctx context.Context, nickname string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE nickname = ?`, nickname)
	if err != nil {
		return storageErr("delete identity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("identity %q: %w", nickname, errors.ErrNotFound)
	}
	return nil
}

func (s *Store) ListIdentities(ctx context.Context) ([]domain.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, nickname, created_at FROM identities ORDER BY created_at ASC`)
	if err != nil {
		return nil, storageErr("list identities", err)
	}
	defer rows.Close()

	var identities []domain.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, storageErr("list identities", err)
		}
		identities = append(identities, identity)
	}
	if err = rows.Err(); err != nil {
		return nil, storageErr("list identities", err)
	}
	return identities, nil
}

const messageColumns = `id, author_id, author, content, room, recipient, is_private, language, created_at`

func (s *Store) CreateMessage(ctx context.Context, message domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		message.ID.String(), message.AuthorID.String(), message.Author, message.Content,
		string(message.Room), message.Recipient, message.IsPrivate, message.Language,
		message.CreatedAt.UnixNano())
	if err != nil {
		return storageErr("create message", err)
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id.String())
	message, err := scanMessage(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, storageErr("get message", err)
	}
	return message, nil
}

func (s *Store) UpdateMessage(ctx context.Context, id uuid.UUID, patch domain.MessagePatch) (domain.Message, error) {
	current, err := s.GetMessage(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	updated := patch.Apply(current)
	if err = updated.Validate(); err != nil {
		return domain.Message{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, recipient = ?, room = ?, is_private = ? WHERE id = ?`,
		updated.Content, updated.Recipient, string(updated.Room), updated.IsPrivate, id.String())
	if err != nil {
		return domain.Message{}, storageErr("update message", err)
	}
	return updated, nil
}

func (s *Store) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id.String())
	if err != nil {
		return storageErr("delete message", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	return nil
}

func (s *Store) FindMessages(ctx context.Context, room domain.RoomName, limit int) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE room = ? ORDER BY created_at DESC, id DESC`
	args := []any{string(room)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryMessages(ctx, "find messages", query, args...)
}

func (s *Store) ListMessages(ctx context.Context) ([]domain.Message, error) {
	return s.queryMessages(ctx, "list messages",
		`SELECT `+messageColumns+` FROM messages ORDER BY created_at DESC, id DESC`)
}

func (s *Store) ListMessagesByAuthor(ctx context.Context, authorID uuid.UUID) ([]domain.Message, error) {
	return s.queryMessages(ctx, "list messages by author",
		`SELECT `+messageColumns+` FROM messages WHERE author_id = ? ORDER BY created_at DESC, id DESC`,
		authorID.String())
}

func (s *Store) Rooms(ctx context.Context) ([]domain.RoomName, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT room FROM messages ORDER BY room ASC`)
	if err != nil {
		return nil, storageErr("rooms", err)
	}
	defer rows.Close()

	var rooms []domain.RoomName
	for rows.Next() {
		var room string
		if err = rows.Scan(&room); err != nil {
			return nil, storageErr("rooms", err)
		}
		rooms = append(rooms, domain.RoomName(room))
	}
	if err = rows.Err(); err != nil {
		return nil, storageErr("rooms", err)
	}
	return rooms, nil
}

func (s *Store) queryMessages(ctx context.Context, op, query string, args ...any) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		messages = append(messages, message)
	}
	if err = rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return messages, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (domain.Identity, error) {
	var (
		id        string
		nickname  string
		createdAt int64
	)
	if err := row.Scan(&id, &nickname, &createdAt); err != nil {
		return domain.Identity{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{ID: parsed, Nickname: nickname, CreatedAt: time.Unix(0, createdAt).UTC()}, nil
}

func scanMessage(row scanner) (domain.Message, error) {
	var (
		id, authorID, author, content, room, recipient, language string
		isPrivate                                                bool
		createdAt                                                int64
	)
	if err := row.Scan(&id, &authorID, &author, &content, &room, &recipient, &isPrivate, &language, &createdAt); err != nil {
		return domain.Message{}, err
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return domain.Message{}, err
	}
	parsedAuthor, err := uuid.Parse(authorID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		AuthorID:  parsedAuthor,
		Author:    author,
		Content:   content,
		Room:      domain.RoomName(room),
		Recipient: recipient,
		IsPrivate: isPrivate,
		Language:  language,
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}, nil
}

// isUniqueViolation matches the SQLite constraint message; the driver error code
// is not part of a stable exported API.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errors.ErrStorage, err)
}
