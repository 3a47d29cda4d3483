package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// cdxTimeLayout is the 14-digit CDX timestamp.
const cdxTimeLayout = "20060102150405"

// IndexEntry is one CDXJ line: a canonicalized URL key, a timestamp, and a
// JSON block locating the record inside the bundled archive.
type IndexEntry struct {
	Key  string
	Time time.Time
	Block
}

// Block is the JSON payload of a CDXJ line.
type Block struct {
	URL      string `json:"url"`
	Digest   string `json:"digest,omitempty"`
	MIME     string `json:"mime,omitempty"`
	Filename string `json:"filename"`
	Offset   int64  `json:"offset"`
	Length   int64  `json:"length"`
	Status   int    `json:"status,omitempty"`
}

// Line renders the entry as "<key> <timestamp> <json>".
func (e *IndexEntry) Line() (string, error) {
	block, err := json.Marshal(e.Block)
	if err != nil {
		return "", fmt.Errorf("export: marshal index block for %s: %w", e.URL, err)
	}
	return fmt.Sprintf("%s %s %s", e.Key, e.Time.UTC().Format(cdxTimeLayout), block), nil
}

// sortEntries orders entries by key then timestamp, the order CDX consumers
// binary-search over.
func sortEntries(entries []IndexEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key != entries[j].Key {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].Time.Before(entries[j].Time)
	})
}
