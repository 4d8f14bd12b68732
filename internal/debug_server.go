// Package internal holds development tooling that is not part of the
// service surface.
package internal

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

type InspectRow struct {
	Key    string
	Size   int
	Detail string
}

// StartDebugServer exposes a read-only view of the store keyspace for
// development: /inspect?prefix=room: lists the matching keys and value
// sizes. It is only started when the config flag enables it.
func StartDebugServer(db *badger.DB, port int, log *slog.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "room:"
		}

		var rows []InspectRow
		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					rows = append(rows, mapRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "prefix %q, %d keys\n\n", prefix, len(rows))

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Key", "Size", "Detail"})
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
		for _, row := range rows {
			table.Append([]string{row.Key, fmt.Sprintf("%d B", row.Size), row.Detail})
		}
		table.Render()
	})

	go func() {
		addr := fmt.Sprintf("localhost:%d", port)
		log.Info("Debug inspector listening", "addr", addr)
		_ = http.ListenAndServe(addr, mux)
	}()
}

func mapRow(key string, val []byte) InspectRow {
	row := InspectRow{Key: key, Size: len(val)}

	parts := strings.Split(key, ":")
	switch parts[0] {
	case "msg":
		if len(parts) == 3 {
			row.Detail = "room " + parts[1] + " message " + strings.TrimLeft(parts[2], "0")
		}
	case "room":
		row.Detail = "room record, inspected " + time.Now().UTC().Format("15:04:05")
	}
	return row
}
