package doclient

import (
	"bytes"
	"encoding/json"
	"sync"
)

// Pagination is the cursor of a paged collection.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

// Collection is the cached state of one resource list. Items is never nil.
// IsLoading is true while at least one action on the collection is in flight.
//
// List fetches are tagged with a generation. A result is applied only if its
// generation is still the latest issued, so out of order completions are
// discarded instead of overwriting newer data.
type Collection[T any] struct {
	mu         sync.RWMutex
	items      []T
	current    *T
	pagination Pagination
	loading    int
	err        string

	listGen    uint64
	currentGen uint64
}

func newCollection[T any](perPage int) *Collection[T] {
	return &Collection[T]{
		items:      []T{},
		pagination: Pagination{Page: 1, PerPage: perPage},
	}
}

// Items returns a copy of the cached items.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of cached items.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Current returns the item cached by the last successful get by id.
func (c *Collection[T]) Current() *T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	out := *c.current
	return &out
}

func (c *Collection[T]) Pagination() Pagination {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pagination
}

func (c *Collection[T]) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading > 0
}

// LastError returns the display message of the last failed action, empty when
// the last action succeeded.
func (c *Collection[T]) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// beginList starts a list fetch and returns its generation.
func (c *Collection[T]) beginList() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading++
	c.err = ""
	c.listGen++
	return c.listGen
}

// beginCurrent starts a get by id and returns its generation.
func (c *Collection[T]) beginCurrent() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading++
	c.err = ""
	c.currentGen++
	return c.currentGen
}

// begin starts a mutation.
func (c *Collection[T]) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading++
	c.err = ""
}

func (c *Collection[T]) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading > 0 {
		c.loading--
	}
}

// applyList replaces items and pagination. It reports false when gen is stale.
func (c *Collection[T]) applyList(gen uint64, items []T, page Pagination) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.listGen {
		return false
	}
	if items == nil {
		items = []T{}
	}
	c.items = items
	c.pagination = page
	return true
}

// failList records a list failure, leaving items and pagination untouched
// unless reset is set.
func (c *Collection[T]) failList(gen uint64, message string, reset bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.listGen {
		return false
	}
	c.err = message
	if reset {
		c.items = []T{}
	}
	return true
}

func (c *Collection[T]) applyCurrent(gen uint64, item *T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.currentGen {
		return false
	}
	c.current = item
	return true
}

func (c *Collection[T]) failCurrent(gen uint64, message string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.currentGen {
		return false
	}
	c.err = message
	return true
}

func (c *Collection[T]) fail(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = message
}

// coerceItems decodes raw as a list of T. Anything that is not a JSON array
// yields an empty slice. Every element of an array is kept: fields that do
// not fit T are left at their zero value.
func coerceItems[T any](raw json.RawMessage) []T {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []T{}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return []T{}
	}

	items := make([]T, 0, len(elems))
	for _, elem := range elems {
		var item T
		_ = json.Unmarshal(elem, &item)
		items = append(items, item)
	}
	return items
}

// intField reads a numeric field of a decoded envelope, accepting numbers and
// numeric strings.
func intField(envelope map[string]json.RawMessage, key string, fallback int) int {
	raw, ok := envelope[key]
	if !ok {
		return fallback
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fallback
	}
	if v, err := n.Int64(); err == nil {
		return int(v)
	}
	if v, err := n.Float64(); err == nil {
		return int(v)
	}
	return fallback
}

// decodeEnvelope decodes a JSON object body into its raw fields. Bodies that
// are not objects yield an empty map.
func decodeEnvelope(raw json.RawMessage) map[string]json.RawMessage {
	envelope := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope == nil {
		return map[string]json.RawMessage{}
	}
	return envelope
}
