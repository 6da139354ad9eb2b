package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Durable store implementations selectable with STORE_DRIVER.
const (
	BadgerDriver = "badger"
	SQLiteDriver = "sqlite"
)

type Config struct {
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`
	Host      string `env:"HOST,default=localhost"`
	WSPort    int    `env:"WS_PORT,default=8080"`
	AdminPort int    `env:"ADMIN_PORT,default=9090"`

	StoreDriver    string `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger"`
	SQLiteFilepath string `env:"SQLITE_FILEPATH,default=./data/relay.db"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,default=./data/bluge"`

	BufferSize           int `env:"BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int `env:"CONNECTION_BUFFER_SIZE,default=64"`
	HistoryLimit         int `env:"HISTORY_LIMIT,default=20"`
	MaxContentLength     int `env:"MAX_CONTENT_LENGTH,default=2000"`

	StoreTimeout    time.Duration `env:"STORE_TIMEOUT,default=5s"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,default=1s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s"`

	CharReplacement   string `env:"CHARACTER_REPLACEMENT,default=*"`
	CensoredWords     string `env:"CENSORED_WORDS"`
	CensoredDirectory string `env:"CENSORED_DIRECTORY"`
}

// Validate checks what the env decoder cannot express.
func (c Config) Validate() error {
	if c.StoreDriver != BadgerDriver && c.StoreDriver != SQLiteDriver {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", BadgerDriver, SQLiteDriver, c.StoreDriver)
	}
	if c.BufferSize <= 0 || c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("BUFFER_SIZE and CONNECTION_BUFFER_SIZE must be positive")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

// CensoredWordList splits CENSORED_WORDS on commas.
func (c Config) CensoredWordList() []string {
	return lo.Compact(lo.Map(strings.Split(c.CensoredWords, ","), func(w string, _ int) string {
		return strings.TrimSpace(w)
	}))
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
