// Package version persists the study_versions collection.
package version

import (
	"context"
	"errors"
	"fmt"

	"github.com/studycat-io/studycat/internal/db"
	"github.com/studycat-io/studycat/internal/domain"
)

// store is the consumer interface for study versions (ISP).
type store interface {
	Get(ctx context.Context, collection, key string) ([]byte, db.Token, error)
	MultiGet(ctx context.Context, collection string, keys []string) (map[string][]byte, error)
	Create(ctx context.Context, collection, key string, doc []byte) (db.Token, error)
	Write(ctx context.Context, collection, key string, doc []byte, expected *db.Token) (db.Token, error)
	Delete(ctx context.Context, collection, key string) error
}

// Repo persists study versions.
type Repo struct {
	store store
}

// New creates a study-version repository.
func New(s store) *Repo { return &Repo{store: s} }

// Get returns a study version and its version token.
func (r *Repo) Get(ctx context.Context, key string) (domain.StudyVersion, domain.Token, error) {
	raw, tok, err := r.store.Get(ctx, db.CollectionVersions, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.StudyVersion{}, domain.Token{}, domain.ErrNotFound
		}
		return domain.StudyVersion{}, domain.Token{}, fmt.Errorf("get study version %s: %w", key, err)
	}
	v, err := decode(raw)
	if err != nil {
		return domain.StudyVersion{}, domain.Token{}, err
	}
	return v, domain.Token(tok), nil
}

// MultiGet batch-resolves study versions; missing keys are silently absent.
func (r *Repo) MultiGet(ctx context.Context, keys []string) (map[string]domain.StudyVersion, error) {
	raws, err := r.store.MultiGet(ctx, db.CollectionVersions, keys)
	if err != nil {
		return nil, fmt.Errorf("multi-get study versions: %w", err)
	}
	out := make(map[string]domain.StudyVersion, len(raws))
	for key, raw := range raws {
		v, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// Create inserts a new study version.
func (r *Repo) Create(ctx context.Context, v *domain.StudyVersion) (domain.Token, error) {
	raw, err := encode(v)
	if err != nil {
		return domain.Token{}, err
	}
	tok, err := r.store.Create(ctx, db.CollectionVersions, v.ID(), raw)
	if err != nil {
		if errors.Is(err, db.ErrKeyExists) {
			return domain.Token{}, fmt.Errorf("study version %s exists: %w", v.ID(), domain.ErrConflict)
		}
		return domain.Token{}, fmt.Errorf("create study version %s: %w", v.ID(), err)
	}
	return domain.Token(tok), nil
}

// Update replaces a study version under its version token.
func (r *Repo) Update(ctx context.Context, v *domain.StudyVersion, token domain.Token) (domain.Token, error) {
	raw, err := encode(v)
	if err != nil {
		return domain.Token{}, err
	}
	expected := db.Token(token)
	tok, err := r.store.Write(ctx, db.CollectionVersions, v.ID(), raw, &expected)
	if err != nil {
		var mismatch *db.TokenMismatchError
		if errors.As(err, &mismatch) {
			return domain.Token{}, domain.NewTokenConflict(domain.Token(mismatch.Current))
		}
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Token{}, domain.ErrNotFound
		}
		return domain.Token{}, fmt.Errorf("update study version %s: %w", v.ID(), err)
	}
	return domain.Token(tok), nil
}

// Delete removes a study version. Used by compensation paths, so an
// already-absent key is not an error.
func (r *Repo) Delete(ctx context.Context, key string) error {
	if err := r.store.Delete(ctx, db.CollectionVersions, key); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("delete study version %s: %w", key, err)
	}
	return nil
}
