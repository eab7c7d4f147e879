package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/tagsearch/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestContainsIgnoreCase(t *testing.T) {
	tests := []struct {
		s, sub string
		want   bool
	}{
		{"Index Already Exists", "index already exists", true},
		{"UNKNOWN INDEX NAME", "unknown index name", true},
		{"hello world", "world", true},
		{"short", "longer than input", false},
		{"exact", "exact", true},
		{"", "", true},
	}
	for _, tc := range tests {
		if got := containsIgnoreCase(tc.s, tc.sub); got != tc.want {
			t.Errorf("containsIgnoreCase(%q, %q) = %v, want %v", tc.s, tc.sub, got, tc.want)
		}
	}
}

func TestOpError_ServerFlag(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisError("Syntax error at offset 3")))

	s := NewStoreForTest(c)
	_, err := s.Search(context.Background(), &db.SearchQuery{IndexName: "idx:tags", Query: matchAll(), Limit: 10})
	if err == nil {
		t.Fatal("expected error")
	}
	if !db.IsServerError(err) {
		t.Errorf("expected server error, got %v", err)
	}
}

func TestOpError_TransportIsNotServer(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.Search(context.Background(), &db.SearchQuery{IndexName: "idx:tags", Query: matchAll(), Limit: 10})
	if err == nil {
		t.Fatal("expected error")
	}
	if db.IsServerError(err) {
		t.Error("timeout must not be classified as a server reply")
	}
	if !isDBError(err) {
		t.Errorf("expected *db.Error, got %T", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped deadline error, got %v", err)
	}
}

// --- json.go tests ---

func TestJSONSetMulti_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString("OK")),
			mock.Result(mock.RedisError("ERR new objects must be created at the root")),
			mock.Result(mock.RedisString("OK")),
		})

	s := NewStoreForTest(c)
	errs := s.JSONSetMulti(context.Background(), []db.JSONSetItem{
		{Key: "tag:a", Path: "$", Data: []byte(`{}`)},
		{Key: "tag:b", Path: "$", Data: []byte(`{}`)},
		{Key: "tag:c", Path: "$", Data: []byte(`{}`)},
	})
	if len(errs) != 3 {
		t.Fatalf("expected 3 results, got %d", len(errs))
	}
	if errs[0] != nil || errs[2] != nil {
		t.Errorf("unexpected errors: %v", errs)
	}
	if errs[1] == nil {
		t.Fatal("expected error for second item")
	}
	if !db.IsServerError(errs[1]) {
		t.Errorf("expected server error, got %v", errs[1])
	}
}

func TestJSONSetMulti_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	s := NewStoreForTest(c)
	if errs := s.JSONSetMulti(context.Background(), nil); errs != nil {
		t.Errorf("expected nil, got %v", errs)
	}
}

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisBlobString("value")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("expected 'value', got %q", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "mykey")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "value")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.Set(context.Background(), "mykey", []byte("value")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- index.go tests ---

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.CREATE", "idx:tags", "ON", "JSON", "PREFIX", "1", "tag:",
			"SCHEMA", "$.tag", "AS", "tag", "TEXT", "$.field", "AS", "field", "TAG",
		)).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	def, err := db.NewIndex("idx:tags").OnJSON().Prefix("tag:").
		Text("$.tag", "tag").
		Tag("$.field", "field").
		Build()
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	if err := s.CreateIndex(context.Background(), def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	idx := &db.IndexDefinition{
		Name:   "idx:tags",
		Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}},
	}
	err := s.CreateIndex(context.Background(), idx)
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "idx:tags")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	err := s.DropIndex(context.Background(), "idx:tags")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	tests := []struct {
		name  string
		reply rueidis.RedisResult
		want  bool
	}{
		{"present", mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("idx:tags"))), true},
		{"absent", mock.Result(mock.RedisError("Unknown Index name")), false},
		{"absent valkey wording", mock.Result(mock.RedisError("no such index")), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)

			c.EXPECT().
				Do(gomock.Any(), mock.Match("FT.INFO", "idx:tags")).
				Return(tc.reply)

			s := NewStoreForTest(c)
			exists, err := s.IndexExists(context.Background(), "idx:tags")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if exists != tc.want {
				t.Errorf("expected %v, got %v", tc.want, exists)
			}
		})
	}
}

func TestBuildCreateArgs_Errors(t *testing.T) {
	if _, err := buildCreateArgs(&db.IndexDefinition{}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := buildCreateArgs(&db.IndexDefinition{Name: "idx"}); err == nil {
		t.Error("expected error for no fields")
	}
	_, err := buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldType(99)})
	if err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestBuildFieldArgs_TagOptions(t *testing.T) {
	args, err := buildFieldArgs(&db.IndexField{
		Name: "$.attributes.color", Alias: "attributes_color", Type: db.IndexFieldTag,
		TagSeparator: ";", TagCaseSensitive: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"$.attributes.color", "AS", "attributes_color", "TAG", "SEPARATOR", ";", "CASESENSITIVE"}
	if len(args) != len(want) {
		t.Fatalf("expected %v, got %v", want, args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d: expected %q, got %q", i, want[i], args[i])
		}
	}
}

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

func TestIndexAttributes(t *testing.T) {
	attr := func(path, alias, typ string) rueidis.RedisMessage {
		return mock.RedisArray(
			mock.RedisString("identifier"), mock.RedisString(path),
			mock.RedisString("attribute"), mock.RedisString(alias),
			mock.RedisString("type"), mock.RedisString(typ),
		)
	}
	attrs := mock.RedisArray(
		attr("$.brand_name", "brand_name_concept", "TAG"),
		attr("$.name", "name_text", "TEXT"),
	)

	tests := []struct {
		name  string
		reply rueidis.RedisResult
	}{
		{"flat reply", mock.Result(mock.RedisArray(
			mock.RedisString("index_name"), mock.RedisString("products"),
			mock.RedisString("attributes"), attrs,
		))},
		{"map reply", mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"index_name": mock.RedisString("products"),
			"attributes": attrs,
		}))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)

			c.EXPECT().
				Do(gomock.Any(), mock.Match("FT.INFO", "products")).
				Return(tc.reply)

			s := NewStoreForTest(c)
			got, err := s.IndexAttributes(context.Background(), "products")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != 2 || got[0] != "brand_name_concept" || got[1] != "name_text" {
				t.Errorf("unexpected attributes %v", got)
			}
		})
	}
}

func TestIndexAttributes_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "products")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	if _, err := s.IndexAttributes(context.Background(), "products"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}
