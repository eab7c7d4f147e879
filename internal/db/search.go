package db

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/tagsearch/internal/domain/search/query"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
)

// Highlight markers passed to HIGHLIGHT TAGS, matching what the recognizer strips.
const (
	HighlightOpen  = domtag.HighlightOpen
	HighlightClose = domtag.HighlightClose
)

// SearchQuery is the input for a paginated FT.SEARCH.
type SearchQuery struct {
	IndexName    string
	Query        query.Node
	Offset       int
	Limit        int
	ReturnFields []string
	// Highlight lists fields whose returned value should carry HighlightOpen/HighlightClose
	// around the matched words.
	Highlight  []string
	WithScores bool
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// DecodeJSON unmarshals a JSON document returned by FT.SEARCH RETURN $ or JSON.GET $.
// Both forms are accepted: the bare object and the single-element array RedisJSON
// returns for JSONPath queries.
func DecodeJSON(raw string, v any) error {
	data := []byte(strings.TrimSpace(raw))
	if len(data) > 0 && data[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(data, &arr); err != nil {
			return fmt.Errorf("decode json array: %w", err)
		}
		if len(arr) == 0 {
			return ErrKeyNotFound
		}
		data = arr[0]
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
