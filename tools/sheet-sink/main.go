// sheet-sink is a local stand-in for the spreadsheet upsert webhook.
// It upserts posted rows keyed by the "Job ID" field, exactly like the
// Apps Script sink does in production, so the relay can be exercised
// end-to-end without a real spreadsheet.
//
// Endpoints:
//
//	POST /sheet   upsert a row (JSON object with a "Job ID" key)
//	GET  /rows    dump all rows
//	GET  /health  liveness
//	POST /reset   clear all rows
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

var (
	mu    sync.Mutex
	rows  = map[string]map[string]any{}
	since time.Time
)

func main() {
	since = time.Now().UTC()

	addr := ":9000"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/sheet", sheetHandler)
	http.HandleFunc("/rows", rowsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		rows = map[string]map[string]any{}
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("sheet-sink listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}

func sheetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var row map[string]any
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	jobID, _ := row["Job ID"].(string)
	if jobID == "" {
		http.Error(w, `missing "Job ID"`, http.StatusBadRequest)
		return
	}

	mu.Lock()
	existing, updated := rows[jobID]
	if updated {
		// Upsert: new values win, old values survive where absent.
		for k, v := range row {
			existing[k] = v
		}
	} else {
		rows[jobID] = row
	}
	total := len(rows)
	mu.Unlock()

	log.Printf("sheet-sink: upsert job=%s updated=%t rows=%d", jobID, updated, total)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"ok":      true,
		"jobId":   jobID,
		"updated": updated,
	})
}

func rowsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	out := struct {
		Count int                       `json:"count"`
		Since string                    `json:"since"`
		Rows  map[string]map[string]any `json:"rows"`
	}{
		Count: len(rows),
		Since: since.Format(time.RFC3339),
		Rows:  rows,
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
