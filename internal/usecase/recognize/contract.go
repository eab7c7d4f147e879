package recognize

import (
	"context"

	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
)

// TagStore looks query text up in the tag vocabulary.
type TagStore interface {
	// MatchToken returns tags whose text contains token.
	MatchToken(ctx context.Context, token string) ([]domtag.Hit, error)
	// MatchPhrase returns tags matching text as an exact word sequence.
	MatchPhrase(ctx context.Context, text string) ([]domtag.Hit, error)
	// MatchFuzzy returns tags within the automatic edit distance of token.
	MatchFuzzy(ctx context.Context, token string) ([]domtag.Hit, error)
}
