package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	doclient "github.com/goliatone/go-doclient"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// ClientValueModel is a single persisted client value, e.g. the session token.
type ClientValueModel struct {
	bun.BaseModel `bun:"table:client_kv"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull,unique"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

var _ doclient.TokenStore = &TokenStore{}

// NewClientValuesRepository returns the generic repository over client_kv.
func NewClientValuesRepository(db *bun.DB) repository.Repository[*ClientValueModel] {
	handlers := repository.ModelHandlers[*ClientValueModel]{
		NewRecord: func() *ClientValueModel {
			return &ClientValueModel{}
		},
		GetID: func(record *ClientValueModel) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ClientValueModel, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "name"
		},
	}
	return repository.NewRepository(db, handlers)
}

// TokenStore persists client values in a SQL database through Bun. Rows are
// keyed by a deterministic id derived from the value name.
type TokenStore struct {
	db     *bun.DB
	values repository.Repository[*ClientValueModel]
	now    func() time.Time
}

// NewTokenStore creates a store on db. Call Migrate before first use.
func NewTokenStore(db *bun.DB) *TokenStore {
	return &TokenStore{
		db:     db,
		values: NewClientValuesRepository(db),
		now:    time.Now,
	}
}

// Open opens a SQLite database at dsn, e.g. "file:doclient.db" or
// "file::memory:?cache=shared", and returns a migrated store.
func Open(ctx context.Context, dsn string) (*TokenStore, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not open token database")
	}
	sqldb.SetMaxOpenConns(1)

	store := NewTokenStore(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the table if it does not exist.
func (s *TokenStore) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*ClientValueModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not migrate token table")
	}
	return nil
}

// Get returns the value stored under key, empty when absent.
func (s *TokenStore) Get(ctx context.Context, key string) (string, error) {
	record, err := s.find(ctx, key)
	if err != nil || record == nil {
		return "", err
	}
	return record.Value, nil
}

// Set upserts the value stored under key.
func (s *TokenStore) Set(ctx context.Context, key, value string) error {
	return s.SetTx(ctx, s.db, key, value)
}

func (s *TokenStore) SetTx(ctx context.Context, tx bun.IDB, key, value string) error {
	id, err := rowID(key)
	if err != nil {
		return err
	}

	record := &ClientValueModel{
		ID:        id,
		Name:      key,
		Value:     value,
		UpdatedAt: s.now(),
	}

	_, err = s.values.GetByIdentifierTx(ctx, tx, key)
	switch {
	case err == nil:
		_, err = s.values.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
	case repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows):
		_, err = s.values.CreateTx(ctx, tx, record)
	}
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not store value").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

// Delete removes the value stored under key. Removing an absent key is not
// an error.
func (s *TokenStore) Delete(ctx context.Context, key string) error {
	record, err := s.find(ctx, key)
	if err != nil || record == nil {
		return err
	}

	if err := s.values.Delete(ctx, record); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not delete stored value").
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

// find returns the row stored under key, nil when absent.
func (s *TokenStore) find(ctx context.Context, key string) (*ClientValueModel, error) {
	id, err := rowID(key)
	if err != nil {
		return nil, err
	}

	record, err := s.values.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not read stored value").
			WithMetadata(map[string]any{"key": key})
	}
	return record, nil
}

// Close closes the underlying database.
func (s *TokenStore) Close() error {
	return s.db.Close()
}

func rowID(key string) (uuid.UUID, error) {
	if key == "" {
		return uuid.Nil, goerrors.New("key is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	id, err := hashid.NewUUID(key)
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not derive row id")
	}
	return id, nil
}
