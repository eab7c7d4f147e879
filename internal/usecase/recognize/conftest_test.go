package recognize

import (
	"context"
	"strings"
	"sync"
	"time"

	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
)

// fakeTags answers lookups from fixed tables keyed by lowercased input.
type fakeTags struct {
	mu     sync.Mutex
	exact  map[string][]domtag.Hit
	phrase map[string][]domtag.Hit
	fuzzy  map[string][]domtag.Hit

	exactErr  map[string]error
	phraseErr error
	fuzzyErr  map[string]error

	fuzzyCalls []string

	// delay holds every lookup briefly so overlapping calls are observable.
	delay       bool
	inFlight    int
	maxInFlight int
	lookups     int
}

func newFakeTags() *fakeTags {
	return &fakeTags{
		exact:    map[string][]domtag.Hit{},
		phrase:   map[string][]domtag.Hit{},
		fuzzy:    map[string][]domtag.Hit{},
		exactErr: map[string]error{},
		fuzzyErr: map[string]error{},
	}
}

func (f *fakeTags) enter() {
	f.mu.Lock()
	f.lookups++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	if f.delay {
		time.Sleep(5 * time.Millisecond)
	}
}

func (f *fakeTags) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeTags) MatchToken(_ context.Context, token string) ([]domtag.Hit, error) {
	f.enter()
	defer f.leave()
	key := strings.ToLower(token)
	if err := f.exactErr[key]; err != nil {
		return nil, err
	}
	return f.exact[key], nil
}

func (f *fakeTags) MatchPhrase(_ context.Context, text string) ([]domtag.Hit, error) {
	f.enter()
	defer f.leave()
	if f.phraseErr != nil {
		return nil, f.phraseErr
	}
	return f.phrase[strings.ToLower(text)], nil
}

func (f *fakeTags) MatchFuzzy(_ context.Context, token string) ([]domtag.Hit, error) {
	f.enter()
	defer f.leave()
	key := strings.ToLower(token)
	f.mu.Lock()
	f.fuzzyCalls = append(f.fuzzyCalls, key)
	f.mu.Unlock()
	if err := f.fuzzyErr[key]; err != nil {
		return nil, err
	}
	return f.fuzzy[key], nil
}

func hit(tag, field string, t domtag.Type, highlighted string) domtag.Hit {
	return domtag.Hit{Doc: domtag.NewDocument(tag, field, t), Highlighted: highlighted}
}
