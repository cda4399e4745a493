package repository

import (
	"encoding/json"
	"fmt"

	"github.com/foxseedlab/playhost/internal/repository"
)

const (
	sessionsTable    = "sessions"
	reputationsTable = "user_reputations"
)

var liveStates = []string{
	string(repository.SessionStateRunning),
	string(repository.SessionStateStopping),
}

// Session records are stored whole as a JSON document, with the columns
// needed for lookups kept alongside.
func encodeRecord(rec repository.SessionRecord) (string, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode session %s: %w", rec.UniqueID, err)
	}
	return string(doc), nil
}

func decodeRecord(doc []byte) (repository.SessionRecord, error) {
	var rec repository.SessionRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return repository.SessionRecord{}, fmt.Errorf("decode session: %w", err)
	}
	return rec, nil
}
