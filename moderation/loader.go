package moderation

import (
	"bufio"
	"bytes"
	"io/fs"
	"path"
	"strings"

	"chat-relay/errors"

	"github.com/samber/lo"
)

// Dictionary is the result of loading censored words, with the languages found for logging.
type Dictionary struct {
	Words     []string
	Languages []string
}

// Loader reads censored word lists from a filesystem: one file per language
// ("fr.txt" -> "fr"), one word per line.
type Loader struct {
	fsys fs.FS
}

func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// LoadAll reads every .txt file of dir. Extra words, typically from configuration,
// are merged in. Duplicates are removed.
func (l *Loader) LoadAll(dir string, extra ...string) (*Dictionary, error) {
	entries, err := fs.ReadDir(l.fsys, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	words := lo.Map(extra, func(w string, _ int) string { return strings.TrimSpace(w) })

	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(l.fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		// Scanner copes with both \n and \r\n
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			words = append(words, strings.TrimSpace(scanner.Text()))
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	words = lo.Uniq(lo.Compact(words))
	if len(words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return &Dictionary{Words: words, Languages: languages}, nil
}
