package redis

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/halcyon-cloud/pixdex/internal/db"
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

// --- kv.go tests ---

func TestGet_Missing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "nope")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.Result(mock.RedisString("payload")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("got %q, want %q", data, "payload")
	}
}

// --- search.go tests ---

func TestSearchKNN_InvalidInput(t *testing.T) {
	s := NewStoreForTest(nil) // client not called

	cases := []*db.KNNQuery{
		{IndexName: "", Vector: []float32{1}, K: 5},
		{IndexName: "idx", Vector: nil, K: 5},
		{IndexName: "idx", Vector: []float32{1}, K: 0},
	}
	for _, q := range cases {
		if _, err := s.SearchKNN(context.Background(), q); err == nil {
			t.Errorf("expected error for query %+v", q)
		}
	}
}

func TestSearchKNN_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "idx"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "idx", Vector: []float32{0.1, 0.2}, K: 3,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSearch {
		t.Errorf("expected db.Error for %s, got %v", db.OpSearch, err)
	}
}

func TestSearchKNN_ParsesEntriesInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	// RESP2 shape: [total, key1, fields1, key2, fields2]
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("pixdex:images:a"),
			mock.RedisArray(
				mock.RedisString("url"), mock.RedisString("https://img.example/a.jpg"),
				mock.RedisString("__vector_score"), mock.RedisString("0.1"),
			),
			mock.RedisString("pixdex:images:b"),
			mock.RedisArray(
				mock.RedisString("url"), mock.RedisString("https://img.example/b.jpg"),
				mock.RedisString("__vector_score"), mock.RedisString("0.4"),
			),
		)))

	s := NewStoreForTest(c)
	sr, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "pixdex:images:idx",
		Vector:       []float32{0.5, 0.5},
		K:            2,
		ReturnFields: []string{"url", "__vector_score"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sr.Total != 2 || len(sr.Entries) != 2 {
		t.Fatalf("expected 2 entries, got total=%d len=%d", sr.Total, len(sr.Entries))
	}
	if sr.Entries[0].Key != "pixdex:images:a" || sr.Entries[1].Key != "pixdex:images:b" {
		t.Errorf("order not preserved: %v", sr.Entries)
	}
	if math.Abs(sr.Entries[0].Score-0.9) > 1e-9 {
		t.Errorf("expected distance converted to similarity 0.9, got %f", sr.Entries[0].Score)
	}
	if _, ok := sr.Entries[0].Fields["__vector_score"]; ok {
		t.Error("__vector_score should be stripped from fields")
	}
	if sr.Entries[1].Fields["url"] != "https://img.example/b.jpg" {
		t.Errorf("unexpected url field: %v", sr.Entries[1].Fields)
	}
}

func TestSearchKNN_RequestsFullWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var gotCmd []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			gotCmd = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "pixdex:images:idx",
		Vector:    []float32{0.5, 0.5},
		K:         50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotCmd[2] != "*=>[KNN 50 @vector $BLOB]" {
		t.Errorf("unexpected query string %q", gotCmd[2])
	}

	// The server window defaults to 10; K above that needs an explicit LIMIT.
	limited := false
	for i := 0; i+2 < len(gotCmd); i++ {
		if gotCmd[i] == "LIMIT" && gotCmd[i+1] == "0" && gotCmd[i+2] == "50" {
			limited = true
			break
		}
	}
	if !limited {
		t.Errorf("expected LIMIT 0 50 in command, got %v", gotCmd)
	}
}

func TestVectorToBytes_RoundTrip(t *testing.T) {
	v := []float32{0.25, -1.5, 3}
	b := []byte(vectorToBytes(v))
	if len(b) != len(v)*4 {
		t.Fatalf("expected %d bytes, got %d", len(v)*4, len(b))
	}
	for i := range v {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		if math.Float32frombits(bits) != v[i] {
			t.Errorf("component %d did not round-trip", i)
		}
	}
}
