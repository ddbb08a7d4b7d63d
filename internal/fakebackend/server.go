// Package fakebackend is an in-process document backend used by tests. It
// mirrors the routes, payload shapes and error bodies of the real service
// and lets tests override any route, hold responses and inspect the calls
// that reached it.
package fakebackend

import (
	"fmt"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/golang-jwt/jwt/v5"
)

// Prefix is the path all routes are mounted under.
const Prefix = "/api"

const localsUser = "user"

// User is an account known to the backend.
type User struct {
	ID          int64
	Username    string
	Password    string
	Email       string
	Role        string
	Permissions map[string]bool
}

// Document is a stored document.
type Document struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type"`
	FileSize    int64  `json:"file_size"`
	CategoryID  int64  `json:"category_id"`
	CreatorID   int64  `json:"user_id"`
	Username    string `json:"username"`
	IsPrivate   bool   `json:"is_private"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Content     []byte `json:"-"`
}

// Category is a stored category.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// Response replaces the handler of a route. Raw, when set, is sent verbatim
// as a JSON body, otherwise Body is encoded. Hold delays the response until
// it is closed.
type Response struct {
	Status int
	Body   any
	Raw    string
	Hold   <-chan struct{}
}

// Request is a recorded call.
type Request struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	RequestID     string
	Query         map[string]string
	Form          map[string]string
	FileName      string
	Body          []byte
}

// Server is the fake backend. Use URL for the client base address.
type Server struct {
	srv    *httptest.Server
	app    *fiber.App
	secret []byte
	ttl    time.Duration

	mu         sync.Mutex
	users      map[string]User
	documents  map[int64]Document
	categories map[int64]Category
	overrides  map[string]Response
	revoked    map[string]bool
	requests   []Request
	nextID     int64
}

// New starts a backend seeded with an admin ("admin"/"admin123"), a regular
// user ("alice"/"secret") and one category.
func New() *Server {
	s := &Server{
		secret:     []byte("fakebackend-signing-key"),
		ttl:        time.Hour,
		users:      map[string]User{},
		documents:  map[int64]Document{},
		categories: map[int64]Category{},
		overrides:  map[string]Response{},
		revoked:    map[string]bool{},
		nextID:     100,
	}

	s.AddUser(User{ID: 1, Username: "admin", Password: "admin123", Email: "admin@example.com", Role: "admin",
		Permissions: map[string]bool{"view": true, "upload": true, "edit": true, "user_manage": true, "category_manage": true}})
	s.AddUser(User{ID: 2, Username: "alice", Password: "secret", Email: "alice@example.com", Role: "user",
		Permissions: map[string]bool{"view": true, "upload": true}})
	s.AddCategory(Category{ID: 1, Name: "General", Description: "default category"})

	s.app = fiber.New(fiber.Config{
		Immutable:             true,
		StrictRouting:         false,
		DisableStartupMessage: true,
		BodyLimit:             16 * 1024 * 1024,
	})
	s.routes()
	s.srv = httptest.NewServer(adaptor.FiberApp(s.app))
	return s
}

// URL is the base address clients should use, prefix included.
func (s *Server) URL() string {
	return s.srv.URL + Prefix
}

// Close shuts the backend down. Calls made afterwards fail to connect.
func (s *Server) Close() {
	s.srv.Close()
}

func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
}

// AddDocument stores d and returns its id. A zero id is assigned.
func (s *Server) AddDocument(d Document) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.id()
	}
	if d.CreatedAt == "" {
		d.CreatedAt = timestamp()
		d.UpdatedAt = d.CreatedAt
	}
	s.documents[d.ID] = d
	return d.ID
}

// AddCategory stores c and returns its id. A zero id is assigned.
func (s *Server) AddCategory(c Category) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	if c.CreatedAt == "" {
		c.CreatedAt = timestamp()
	}
	s.categories[c.ID] = c
	return c.ID
}

// Documents returns the stored documents ordered by id.
func (s *Server) Documents() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedDocuments()
}

// Override replaces the handler of method and path, path given without
// Prefix, e.g. Override("GET", "/documents", ...).
func (s *Server) Override(method, path string, r Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[routeKey(method, Prefix+path)] = r
}

// ClearOverride restores the default handler.
func (s *Server) ClearOverride(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, routeKey(method, Prefix+path))
}

// Revoke makes the backend reject token with 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// Requests returns every recorded call in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent call to method and path, path given
// without Prefix.
func (s *Server) LastRequest(method, path string) (Request, bool) {
	key := routeKey(method, Prefix+path)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		r := s.requests[i]
		if routeKey(r.Method, r.Path) == key {
			return r, true
		}
	}
	return Request{}, false
}

// Count returns how many calls reached method and path.
func (s *Server) Count(method, path string) int {
	key := routeKey(method, Prefix+path)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if routeKey(r.Method, r.Path) == key {
			n++
		}
	}
	return n
}

// IssueToken signs an access token for u that expires after ttl.
func (s *Server) IssueToken(u User, ttl time.Duration) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      fmt.Sprintf("%d", u.ID),
		"username": u.Username,
		"role":     u.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *Server) routes() {
	s.app.Use(s.record, s.override)

	api := s.app.Group(Prefix)
	api.Post("/auth/login", s.login)
	api.Post("/auth/register", s.register)
	api.Post("/auth/change-password", s.authenticate, s.changePassword)

	api.Get("/users/profile", s.authenticate, s.profile)
	api.Put("/users/profile", s.authenticate, s.updateProfile)

	api.Get("/documents", s.authenticate, s.listDocuments)
	api.Post("/documents", s.authenticate, s.uploadDocument)
	api.Get("/documents/:id", s.authenticate, s.getDocument)
	api.Put("/documents/:id", s.authenticate, s.updateDocument)
	api.Delete("/documents/:id", s.authenticate, s.deleteDocument)
	api.Get("/documents/:id/download", s.authenticate, s.downloadDocument)
	api.Get("/documents/:id/preview", s.authenticate, s.previewDocument)

	api.Get("/categories", s.authenticate, s.listCategories)
	api.Post("/categories", s.authenticate, s.createCategory)
	api.Put("/categories/:id", s.authenticate, s.updateCategory)
	api.Delete("/categories/:id", s.authenticate, s.deleteCategory)
}

func (s *Server) record(c *fiber.Ctx) error {
	req := Request{
		Method:        c.Method(),
		Path:          c.Path(),
		Authorization: c.Get(fiber.HeaderAuthorization),
		ContentType:   c.Get(fiber.HeaderContentType),
		RequestID:     c.Get("X-Request-ID"),
		Query:         c.Queries(),
		Body:          append([]byte(nil), c.Body()...),
	}

	if strings.HasPrefix(req.ContentType, fiber.MIMEMultipartForm) {
		if form, err := c.MultipartForm(); err == nil {
			req.Form = map[string]string{}
			for k, vs := range form.Value {
				if len(vs) > 0 {
					req.Form[k] = vs[0]
				}
			}
			if files := form.File["file"]; len(files) > 0 {
				req.FileName = files[0].Filename
			}
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	return c.Next()
}

func (s *Server) override(c *fiber.Ctx) error {
	s.mu.Lock()
	r, ok := s.overrides[routeKey(c.Method(), c.Path())]
	s.mu.Unlock()

	if !ok {
		return c.Next()
	}

	if r.Hold != nil {
		<-r.Hold
	}

	status := r.Status
	if status == 0 {
		status = fiber.StatusOK
	}
	if r.Raw != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(status).SendString(r.Raw)
	}
	if r.Body == nil {
		return c.SendStatus(status)
	}
	return c.Status(status).JSON(r.Body)
}

func (s *Server) authenticate(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return unauthorized(c)
	}

	s.mu.Lock()
	revoked := s.revoked[raw]
	s.mu.Unlock()
	if revoked {
		return unauthorized(c)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return unauthorized(c)
	}

	username, _ := claims["username"].(string)
	s.mu.Lock()
	user, exists := s.users[username]
	s.mu.Unlock()
	if !exists {
		return unauthorized(c)
	}

	c.Locals(localsUser, user)
	return c.Next()
}

func (s *Server) currentUser(c *fiber.Ctx) User {
	u, _ := c.Locals(localsUser).(User)
	return u
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) sortedDocuments() []Document {
	out := make([]Document, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func unauthorized(c *fiber.Ctx) error {
	return message(c, fiber.StatusUnauthorized, "missing or invalid token")
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}

func routeKey(method, path string) string {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return strings.ToUpper(method) + " " + path
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000")
}

func readAll(r io.Reader) []byte {
	b, _ := io.ReadAll(r)
	return b
}
