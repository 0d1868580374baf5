// Package main provides a coaching hook that appends feedback to a journal
// file. The file is FORMCOACH_JOURNAL, or journal.log in the hook directory.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ayusman/formcoach/internal/coach"
)

const defaultJournal = "journal.log"

func main() {
	path := os.Getenv("FORMCOACH_JOURNAL")
	if path == "" {
		path = defaultJournal
	}
	json.NewEncoder(os.Stdout).Encode(handle(os.Stdin, path))
}

// handle reads one request and appends its message to the journal at path.
func handle(in io.Reader, path string) coach.HookResponse {
	var req coach.HookRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return coach.HookResponse{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		// anything but a permission problem is reported busy and retried
		if os.IsPermission(err) {
			return coach.HookResponse{Error: err.Error()}
		}
		return coach.HookResponse{Busy: true, Error: err.Error()}
	}
	defer f.Close()

	if _, err := io.WriteString(f, formatEntry(req.Message)); err != nil {
		return coach.HookResponse{Error: fmt.Sprintf("failed to write journal: %v", err)}
	}
	return coach.HookResponse{Success: true}
}

// formatEntry renders a message as one journal line.
func formatEntry(msg coach.Message) string {
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	text := strings.ReplaceAll(msg.Text, "\n", " | ")
	return fmt.Sprintf("%s\t%s\t#%d\t%s\t%s\n", at.UTC().Format(time.RFC3339), msg.Exercise, msg.RepNumber, msg.Kind, text)
}
