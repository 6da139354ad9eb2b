// Command inspect dumps the relay keys held in a Badger directory, read-only.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

// record holds the fields shared by stored identities and messages.
type record struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Author    string `json:"author"`
	Room      string `json:"room"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	At        int64  `json:"at"`
	CreatedAt int64  `json:"created_at"`
}

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Secondary indexes ("msg-id:", "msg-author:", "identity-id:") only hold keys
	prefix := flag.String("prefix", "msg:", "Prefix to scan, e.g. msg:general: or identity:")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Timestamp", "ID", "Who", "Room", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				var r record
				if err := json.Unmarshal(v, &r); err != nil {
					// Index entries and foreign keys are shown raw
					table.Append([]string{key, "", "", "", "", string(v)})
					return nil
				}
				table.Append(toRow(key, r))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func toRow(key string, r record) []string {
	at := r.At
	if at == 0 {
		at = r.CreatedAt
	}
	who := r.Author
	if who == "" {
		who = r.Nickname
	}
	if r.Recipient != "" {
		who = fmt.Sprintf("%s -> %s", who, r.Recipient)
	}
	// The first 8 characters of the id are enough to tell records apart
	displayID := r.ID
	if len(displayID) > 8 {
		displayID = displayID[:8]
	}
	return []string{
		key,
		time.Unix(0, at).UTC().Format("15:04:05"),
		displayID,
		who,
		r.Room,
		strings.TrimSpace(r.Content),
	}
}
