package doclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const documentsPath = "/documents/"

// Document is a document as listed by the backend. Timestamps are kept as
// sent, the backend emits them without a zone.
type Document struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	FileName     string `json:"file_name"`
	FilePath     string `json:"file_path,omitempty"`
	FileType     string `json:"file_type"`
	FileSize     int64  `json:"file_size,omitempty"`
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name,omitempty"`
	UserID       int64  `json:"user_id,omitempty"`
	CreatorID    int64  `json:"creator_id,omitempty"`
	Username     string `json:"username,omitempty"`
	IsPrivate    bool   `json:"is_private"`
	Version      int    `json:"version,omitempty"`
	Content      string `json:"content,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// ListParams are the overrides merged onto the current pagination for one
// fetch. Zero values keep the current page and page size. Filters apply to
// the call they are passed to only.
type ListParams struct {
	Page        int
	PerPage     int
	Keyword     string
	CategoryID  int64
	FileType    string
	MyDocuments bool
}

func (p ListParams) query(current Pagination) url.Values {
	page := current.Page
	if p.Page > 0 {
		page = p.Page
	}
	perPage := current.PerPage
	if p.PerPage > 0 {
		perPage = p.PerPage
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if p.Keyword != "" {
		q.Set("keyword", p.Keyword)
	}
	if p.CategoryID > 0 {
		q.Set("category_id", strconv.FormatInt(p.CategoryID, 10))
	}
	if p.FileType != "" {
		q.Set("file_type", p.FileType)
	}
	if p.MyDocuments {
		q.Set("is_my_documents", "true")
	}
	return q
}

// UploadPayload is a document upload. File is read once.
type UploadPayload struct {
	FileName    string
	File        io.Reader
	Title       string
	Description string
	CategoryID  int64
	IsPrivate   bool
}

// Validate checks the payload before anything is sent.
func (p UploadPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FileName, validation.Required, validation.Length(1, 255)),
		validation.Field(&p.File, validation.NotNil),
		validation.Field(&p.Title, validation.Length(0, 200)),
		validation.Field(&p.CategoryID, validation.Required, validation.Min(int64(1))),
	)
}

// DocumentUpdate holds the editable fields of a document. Nil fields are
// left unchanged.
type DocumentUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	CategoryID  *int64  `json:"category_id,omitempty"`
	IsPrivate   *bool   `json:"is_private,omitempty"`
	Content     *string `json:"content,omitempty"`
}

func (u DocumentUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&u.CategoryID, validation.NilOrNotEmpty, validation.Min(int64(1))),
	)
}

// DocumentStore caches the paged document list and the current document.
type DocumentStore struct {
	*Collection[Document]
	client *Client
	tokens TokenSource
	logger Logger
}

// NewDocumentStore creates a store calling through client. tokens is the
// session whose token is attached explicitly to uploads.
func NewDocumentStore(client *Client, tokens TokenSource, cfg Config, opts ...Option) *DocumentStore {
	o := newOptions(opts...)
	return &DocumentStore{
		Collection: newCollection[Document](cfg.GetPerPage()),
		client:     client,
		tokens:     tokens,
		logger:     o.logger,
	}
}

// FetchDocuments loads one page of documents. On failure items and
// pagination keep their previous values and LastError holds the backend message
// or MessageFetchDocuments.
func (s *DocumentStore) FetchDocuments(ctx context.Context, params ListParams) error {
	gen := s.beginList()
	defer s.end()

	query := params.query(s.Pagination())

	var raw json.RawMessage
	if err := s.client.Get(ctx, documentsPath, &raw, WithQuery(query)); err != nil {
		if s.failList(gen, fetchMessage(err, MessageFetchDocuments), false) {
			s.logger.Warn("fetch documents failed: %v", err)
		}
		return err
	}

	envelope := decodeEnvelope(raw)
	page := Pagination{
		Page:    intField(envelope, "page", atoi(query.Get("page"))),
		PerPage: intField(envelope, "per_page", atoi(query.Get("per_page"))),
		Total:   intField(envelope, "total", 0),
	}

	if !s.applyList(gen, coerceItems[Document](envelope["documents"]), page) {
		s.logger.Debug("discarding stale documents page %d", page.Page)
	}
	return nil
}

// Refresh reloads the current page without filters.
func (s *DocumentStore) Refresh(ctx context.Context) error {
	return s.FetchDocuments(ctx, ListParams{})
}

// FetchDocument loads one document and caches it as Current. A failure
// records LastError and returns a nil document.
func (s *DocumentStore) FetchDocument(ctx context.Context, id int64) (*Document, error) {
	gen := s.beginCurrent()
	defer s.end()

	var raw json.RawMessage
	if err := s.client.Get(ctx, documentPath(id), &raw); err != nil {
		s.failCurrent(gen, fetchMessage(err, MessageFetchDocument))
		s.logger.Warn("fetch document %d failed: %v", id, err)
		return nil, err
	}

	envelope := decodeEnvelope(raw)
	body := raw
	if nested, ok := envelope["document"]; ok {
		body = nested
	}

	doc := &Document{}
	decodeInto(body, doc)

	s.applyCurrent(gen, doc)
	out := *doc
	return &out, nil
}

// UploadDocument sends a multipart upload carrying the session token
// explicitly, then refreshes the list. Any failure is stored as a single
// message on LastError.
func (s *DocumentStore) UploadDocument(ctx context.Context, payload UploadPayload) error {
	s.begin()
	defer s.end()

	if err := payload.Validate(); err != nil {
		return s.mutationFailed("upload", newValidationError(err))
	}

	body, contentType, err := encodeUpload(payload)
	if err != nil {
		return s.mutationFailed("upload", err)
	}

	var opts []CallOption
	if s.tokens != nil {
		opts = append(opts, WithBearer(s.tokens.Token()))
	}

	if err := s.client.Send(ctx, http.MethodPost, documentsPath, body, contentType, nil, opts...); err != nil {
		return s.mutationFailed("upload", err)
	}

	s.logger.Info("uploaded document %q", payload.FileName)
	return s.refresh(ctx)
}

// UpdateDocument edits the metadata of a document, then refreshes the list.
func (s *DocumentStore) UpdateDocument(ctx context.Context, id int64, update DocumentUpdate) error {
	s.begin()
	defer s.end()

	if err := update.Validate(); err != nil {
		return s.mutationFailed("update", newValidationError(err))
	}

	if err := s.client.Put(ctx, documentPath(id), update, nil); err != nil {
		return s.mutationFailed("update", err)
	}
	return s.refresh(ctx)
}

// DeleteDocument deletes a document, then refreshes the list. On failure the
// cached items are left as they were.
func (s *DocumentStore) DeleteDocument(ctx context.Context, id int64) error {
	s.begin()
	defer s.end()

	if err := s.client.Delete(ctx, documentPath(id), nil); err != nil {
		return s.mutationFailed("delete", err)
	}

	s.logger.Info("deleted document %d", id)
	return s.refresh(ctx)
}

// DocumentPreview is what the backend returns to preview a document: inline
// text for text formats, otherwise a URL to fetch the file from.
type DocumentPreview struct {
	FileName      string `json:"file_name"`
	FileExtension string `json:"file_extension"`
	Content       string `json:"content,omitempty"`
	PreviewURL    string `json:"preview_url,omitempty"`
	IsImage       bool   `json:"is_image,omitempty"`
	NeedsDownload bool   `json:"needs_download,omitempty"`
}

// Inline reports whether the preview carries the document text.
func (p *DocumentPreview) Inline() bool {
	return p != nil && p.PreviewURL == ""
}

// PreviewDocument loads the preview of a document. Cached items and Current
// are not touched; a failure records LastError and returns a nil preview.
func (s *DocumentStore) PreviewDocument(ctx context.Context, id int64) (*DocumentPreview, error) {
	s.begin()
	defer s.end()

	var raw json.RawMessage
	if err := s.client.Get(ctx, documentPath(id)+"/preview", &raw); err != nil {
		s.fail(fetchMessage(err, MessagePreviewDocument))
		s.logger.Warn("preview document %d failed: %v", id, err)
		return nil, err
	}

	preview := &DocumentPreview{}
	decodeInto(raw, preview)
	return preview, nil
}

// DownloadDocument streams the file of a document into w.
func (s *DocumentStore) DownloadDocument(ctx context.Context, id int64, w io.Writer) (int64, error) {
	s.begin()
	defer s.end()

	n, err := s.client.Download(ctx, documentPath(id)+"/download", w)
	if err != nil {
		return n, s.mutationFailed("download", err)
	}
	return n, nil
}

// refresh reloads the list after a successful mutation. A refresh failure is
// recorded by FetchDocuments and not reported as a failed mutation.
func (s *DocumentStore) refresh(ctx context.Context) error {
	if err := s.FetchDocuments(ctx, ListParams{}); err != nil {
		s.logger.Warn("refresh after mutation failed: %v", err)
	}
	return nil
}

func (s *DocumentStore) mutationFailed(action string, err error) error {
	s.fail(FailureMessage(err))
	s.logger.Warn("document %s failed (%s): %v", action, Classify(err), err)
	return err
}

func encodeUpload(p UploadPayload) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	part, err := mw.CreateFormFile("file", p.FileName)
	if err != nil {
		return nil, "", newRequestError(err)
	}
	if _, err := io.Copy(part, p.File); err != nil {
		return nil, "", newRequestError(err)
	}

	title := p.Title
	if title == "" {
		title = p.FileName
	}
	fields := map[string]string{
		"title":       title,
		"description": p.Description,
		"category_id": strconv.FormatInt(p.CategoryID, 10),
		"is_private":  strconv.FormatBool(p.IsPrivate),
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", newRequestError(err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", newRequestError(err)
	}
	return buf, mw.FormDataContentType(), nil
}

func documentPath(id int64) string {
	return fmt.Sprintf("/documents/%d", id)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
