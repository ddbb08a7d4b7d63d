package doclient

import (
	"context"
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const categoriesPath = "/categories/"

// Category groups documents.
type Category struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	DocumentCount int    `json:"document_count,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CategoryInput is the payload to create or rename a category.
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in CategoryInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Description, validation.Length(0, 200)),
	)
}

// CategoryStore caches the category list. Categories are used for lookups,
// so a failed fetch empties the list instead of keeping a stale one.
type CategoryStore struct {
	*Collection[Category]
	client *Client
	logger Logger
}

func NewCategoryStore(client *Client, cfg Config, opts ...Option) *CategoryStore {
	o := newOptions(opts...)
	return &CategoryStore{
		Collection: newCollection[Category](cfg.GetPerPage()),
		client:     client,
		logger:     o.logger,
	}
}

// FetchCategories loads every category. On failure LastError is set and the
// list is reset to empty.
func (s *CategoryStore) FetchCategories(ctx context.Context) error {
	gen := s.beginList()
	defer s.end()

	var raw json.RawMessage
	if err := s.client.Get(ctx, categoriesPath, &raw); err != nil {
		if s.failList(gen, fetchMessage(err, MessageFetchCategories), true) {
			s.logger.Warn("fetch categories failed: %v", err)
		}
		return err
	}

	items := coerceItems[Category](decodeEnvelope(raw)["categories"])
	page := Pagination{Page: 1, PerPage: len(items), Total: len(items)}
	if !s.applyList(gen, items, page) {
		s.logger.Debug("discarding stale categories")
	}
	return nil
}

// Lookup finds a cached category by id.
func (s *CategoryStore) Lookup(id int64) (Category, bool) {
	for _, c := range s.Items() {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CreateCategory creates a category and reloads the list.
func (s *CategoryStore) CreateCategory(ctx context.Context, in CategoryInput) error {
	return s.mutate(ctx, "create", &in, func() error {
		return s.client.Post(ctx, categoriesPath, in, nil)
	})
}

// UpdateCategory renames a category and reloads the list.
func (s *CategoryStore) UpdateCategory(ctx context.Context, id int64, in CategoryInput) error {
	return s.mutate(ctx, "update", &in, func() error {
		return s.client.Put(ctx, categoryPath(id), in, nil)
	})
}

// DeleteCategory deletes a category and reloads the list. The backend
// refuses to delete categories that still hold documents.
func (s *CategoryStore) DeleteCategory(ctx context.Context, id int64) error {
	return s.mutate(ctx, "delete", nil, func() error {
		return s.client.Delete(ctx, categoryPath(id), nil)
	})
}

func (s *CategoryStore) mutate(ctx context.Context, action string, in *CategoryInput, call func() error) error {
	s.begin()
	defer s.end()

	if in != nil {
		if err := in.Validate(); err != nil {
			return s.mutationFailed(action, newValidationError(err))
		}
	}

	if err := call(); err != nil {
		return s.mutationFailed(action, err)
	}

	if err := s.FetchCategories(ctx); err != nil {
		s.logger.Warn("refresh after category %s failed: %v", action, err)
	}
	return nil
}

func (s *CategoryStore) mutationFailed(action string, err error) error {
	s.fail(FailureMessage(err))
	s.logger.Warn("category %s failed (%s): %v", action, Classify(err), err)
	return err
}

func categoryPath(id int64) string {
	return fmt.Sprintf("/categories/%d", id)
}
