package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/studycat-io/studycat/internal/db"
)

func mustCreate(t *testing.T, s *Store, collection, key, doc string) db.Token {
	t.Helper()
	tok, err := s.Create(context.Background(), collection, key, []byte(doc))
	if err != nil {
		t.Fatalf("Create(%s, %s): %v", collection, key, err)
	}
	return tok
}

func TestGet_ReturnsDocumentAndToken(t *testing.T) {
	s := NewStore()
	tok := mustCreate(t, s, "studies", "hum0001", `{"id":"hum0001"}`)

	raw, got, err := s.Get(context.Background(), "studies", "hum0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"id":"hum0001"}` {
		t.Errorf("unexpected document: %s", raw)
	}
	if got != tok {
		t.Errorf("expected token %v, got %v", tok, got)
	}
}

func TestGet_MissingKey(t *testing.T) {
	s := NewStore()

	_, _, err := s.Get(context.Background(), "studies", "hum9999")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestMultiGet_SkipsMissingKeys(t *testing.T) {
	s := NewStore()
	mustCreate(t, s, "studies", "hum0001", `{"id":"hum0001"}`)
	mustCreate(t, s, "studies", "hum0002", `{"id":"hum0002"}`)

	got, err := s.MultiGet(context.Background(), "studies", []string{"hum0001", "hum0404", "hum0002"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(got))
	}
	if _, ok := got["hum0404"]; ok {
		t.Error("missing key should be absent from the result")
	}
}

func TestCreate_DuplicateKey(t *testing.T) {
	s := NewStore()
	mustCreate(t, s, "studies", "hum0001", `{"id":"hum0001"}`)

	_, err := s.Create(context.Background(), "studies", "hum0001", []byte(`{"id":"hum0001"}`))
	if !errors.Is(err, db.ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
}

func TestWrite_TokenMatch(t *testing.T) {
	s := NewStore()
	tok := mustCreate(t, s, "studies", "hum0001", `{"status":"draft"}`)

	newTok, err := s.Write(context.Background(), "studies", "hum0001", []byte(`{"status":"published"}`), &tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newTok == tok {
		t.Error("write must advance the token")
	}

	raw, _, err := s.Get(context.Background(), "studies", "hum0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"status":"published"}` {
		t.Errorf("unexpected document after write: %s", raw)
	}
}

func TestWrite_StaleToken(t *testing.T) {
	s := NewStore()
	tok := mustCreate(t, s, "studies", "hum0001", `{"status":"draft"}`)

	cur, err := s.Write(context.Background(), "studies", "hum0001", []byte(`{"status":"review"}`), &tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = s.Write(context.Background(), "studies", "hum0001", []byte(`{"status":"published"}`), &tok)
	if !errors.Is(err, db.ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch, got %v", err)
	}
	var mismatch *db.TokenMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected TokenMismatchError, got %T", err)
	}
	if mismatch.Current != cur {
		t.Errorf("expected current token %v in error, got %v", cur, mismatch.Current)
	}

	// The stale write must not have touched the document.
	raw, _, err := s.Get(context.Background(), "studies", "hum0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"status":"review"}` {
		t.Errorf("stale write overwrote the document: %s", raw)
	}
}

func TestWrite_NilTokenUpserts(t *testing.T) {
	s := NewStore()

	if _, err := s.Write(context.Background(), "studies", "hum0001", []byte(`{"status":"draft"}`), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Write(context.Background(), "studies", "hum0001", []byte(`{"status":"review"}`), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete_MissingKey(t *testing.T) {
	s := NewStore()

	err := s.Delete(context.Background(), "studies", "hum9999")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestDeleteByFilter_RemovesOnlyMatches(t *testing.T) {
	s := NewStore()
	mustCreate(t, s, "datasets", "d1.v1", `{"studyId":"hum0001"}`)
	mustCreate(t, s, "datasets", "d1.v2", `{"studyId":"hum0001"}`)
	mustCreate(t, s, "datasets", "d2.v1", `{"studyId":"hum0002"}`)

	n, err := s.DeleteByFilter(context.Background(), "datasets", []db.Filter{
		db.Term{Field: "studyId", Value: "hum0001"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}

	if _, _, err := s.Get(context.Background(), "datasets", "d2.v1"); err != nil {
		t.Errorf("unrelated document was removed: %v", err)
	}
}
