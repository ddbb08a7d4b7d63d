package fakebackend

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func userPayload(u User) fiber.Map {
	return fiber.Map{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"role":        u.Role,
		"created_at":  "2024-03-01T10:00:00.000000",
		"permissions": u.Permissions,
	}
}

func (s *Server) login(c *fiber.Ctx) error {
	var in credentials
	if err := c.BodyParser(&in); err != nil {
		return message(c, fiber.StatusBadRequest, "invalid request body")
	}
	if in.Username == "" || in.Password == "" {
		return message(c, fiber.StatusBadRequest, "username and password are required")
	}

	s.mu.Lock()
	user, ok := s.users[in.Username]
	s.mu.Unlock()
	if !ok || user.Password != in.Password {
		return message(c, fiber.StatusUnauthorized, "bad credentials")
	}

	return c.JSON(fiber.Map{
		"access_token": s.IssueToken(user, s.ttl),
		"token_type":   "bearer",
		"user":         userPayload(user),
	})
}

func (s *Server) register(c *fiber.Ctx) error {
	var in credentials
	if err := c.BodyParser(&in); err != nil {
		return message(c, fiber.StatusBadRequest, "invalid request body")
	}
	if in.Username == "" || in.Password == "" {
		return message(c, fiber.StatusBadRequest, "username and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[in.Username]; exists {
		return message(c, fiber.StatusBadRequest, "username already exists")
	}
	s.users[in.Username] = User{
		ID:          s.id(),
		Username:    in.Username,
		Password:    in.Password,
		Email:       in.Email,
		Role:        "user",
		Permissions: map[string]bool{"view": true},
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "registered"})
}

func (s *Server) profile(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user": userPayload(s.currentUser(c))})
}

func (s *Server) changePassword(c *fiber.Ctx) error {
	var in struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.BodyParser(&in); err != nil {
		return message(c, fiber.StatusBadRequest, "invalid request body")
	}
	if in.OldPassword == "" || in.NewPassword == "" {
		return message(c, fiber.StatusBadRequest, "old and new password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[s.currentUser(c).Username]
	if user.Password != in.OldPassword {
		return message(c, fiber.StatusBadRequest, "old password is incorrect")
	}
	user.Password = in.NewPassword
	s.users[user.Username] = user
	return c.JSON(fiber.Map{"message": "password changed"})
}

func (s *Server) updateProfile(c *fiber.Ctx) error {
	var in struct {
		Email *string `json:"email"`
	}
	if err := c.BodyParser(&in); err != nil {
		return message(c, fiber.StatusBadRequest, "invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[s.currentUser(c).Username]
	if in.Email != nil {
		for _, other := range s.users {
			if other.ID != user.ID && other.Email == *in.Email {
				return message(c, fiber.StatusBadRequest, "email already in use")
			}
		}
		user.Email = *in.Email
	}
	s.users[user.Username] = user
	return c.JSON(fiber.Map{"message": "profile updated"})
}

func (s *Server) listDocuments(c *fiber.Ctx) error {
	user := s.currentUser(c)
	page := c.QueryInt("page", 1)
	perPage := c.QueryInt("per_page", 20)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	keyword := strings.ToLower(c.Query("keyword"))
	categoryID := int64(c.QueryInt("category_id", 0))
	fileType := c.Query("file_type")
	mine := c.QueryBool("is_my_documents", false)

	s.mu.Lock()
	all := s.sortedDocuments()
	s.mu.Unlock()

	filtered := []Document{}
	for _, d := range all {
		if user.Role != "admin" && d.IsPrivate && d.CreatorID != user.ID {
			continue
		}
		if mine && d.CreatorID != user.ID {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(d.Title+" "+d.Description), keyword) {
			continue
		}
		if categoryID > 0 && d.CategoryID != categoryID {
			continue
		}
		if fileType != "" && d.FileType != fileType {
			continue
		}
		filtered = append(filtered, d)
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	return c.JSON(fiber.Map{
		"documents": filtered[start:end],
		"total":     len(filtered),
		"page":      page,
		"per_page":  perPage,
	})
}

func (s *Server) uploadDocument(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return message(c, fiber.StatusBadRequest, "no file selected")
	}

	categoryID, err := strconv.ParseInt(c.FormValue("category_id"), 10, 64)
	if err != nil || categoryID < 1 {
		return message(c, fiber.StatusBadRequest, "category is required")
	}

	s.mu.Lock()
	_, known := s.categories[categoryID]
	s.mu.Unlock()
	if !known {
		return message(c, fiber.StatusBadRequest, "category does not exist")
	}

	fh, err := file.Open()
	if err != nil {
		return message(c, fiber.StatusInternalServerError, "could not read upload")
	}
	defer fh.Close()

	title := c.FormValue("title")
	if title == "" {
		title = file.Filename
	}

	user := s.currentUser(c)
	id := s.AddDocument(Document{
		Title:       title,
		Description: c.FormValue("description"),
		FileName:    file.Filename,
		FileType:    strings.TrimPrefix(filepath.Ext(file.Filename), "."),
		FileSize:    file.Size,
		CategoryID:  categoryID,
		CreatorID:   user.ID,
		Username:    user.Username,
		IsPrivate:   strings.EqualFold(c.FormValue("is_private"), "true"),
		Content:     readAll(fh),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "document uploaded",
		"document_id": id,
	})
}

// findDocument resolves the :id parameter. When it reports false the error
// response has already been written and the returned error is the write error.
func (s *Server) findDocument(c *fiber.Ctx) (Document, bool, error) {
	id, err := c.ParamsInt("id")
	if err != nil {
		return Document{}, false, message(c, fiber.StatusBadRequest, "invalid document id")
	}

	s.mu.Lock()
	doc, ok := s.documents[int64(id)]
	s.mu.Unlock()
	if !ok {
		return Document{}, false, message(c, fiber.StatusNotFound, "document not found")
	}

	user := s.currentUser(c)
	if doc.IsPrivate && user.Role != "admin" && doc.CreatorID != user.ID {
		return Document{}, false, message(c, fiber.StatusForbidden, "no permission to access this document")
	}
	return doc, true, nil
}

func (s *Server) getDocument(c *fiber.Ctx) error {
	doc, ok, err := s.findDocument(c)
	if !ok {
		return err
	}
	return c.JSON(fiber.Map{"document": doc})
}

func (s *Server) updateDocument(c *fiber.Ctx) error {
	doc, ok, err := s.findDocument(c)
	if !ok {
		return err
	}

	var in struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		CategoryID  *int64  `json:"category_id"`
		IsPrivate   *bool   `json:"is_private"`
	}
	if err := c.BodyParser(&in); err != nil {
		return message(c, fiber.StatusBadRequest, "invalid request body")
	}

	if in.Title != nil {
		doc.Title = *in.Title
	}
	if in.Description != nil {
		doc.Description = *in.Description
	}
	if in.CategoryID != nil {
		doc.CategoryID = *in.CategoryID
	}
	if in.IsPrivate != nil {
		doc.IsPrivate = *in.IsPrivate
	}
	doc.UpdatedAt = timestamp()

	s.mu.Lock()
	s.documents[doc.ID] = doc
	s.mu.Unlock()

	return c.JSON(fiber.Map{"message": "document updated", "document": doc})
}

func (s *Server) deleteDocument(c *fiber.Ctx) error {
	doc, ok, err := s.findDocument(c)
	if !ok {
		return err
	}

	s.mu.Lock()
	delete(s.documents, doc.ID)
	s.mu.Unlock()

	return c.JSON(fiber.Map{"message": "document deleted"})
}

func (s *Server) downloadDocument(c *fiber.Ctx) error {
	doc, ok, err := s.findDocument(c)
	if !ok {
		return err
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.FileName))
	return c.Send(doc.Content)
}

func (s *Server) previewDocument(c *fiber.Ctx) error {
	doc, ok, err := s.findDocument(c)
	if !ok {
		return err
	}

	ext := strings.ToLower(filepath.Ext(doc.FileName))
	body := fiber.Map{"file_extension": ext, "file_name": doc.FileName}
	switch ext {
	case ".txt", ".md", ".json", ".log", ".csv", ".xml", ".html", ".htm":
		body["content"] = string(doc.Content)
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		body["preview_url"] = fmt.Sprintf("%s/documents/%d/download", Prefix, doc.ID)
		body["is_image"] = true
	default:
		body["preview_url"] = fmt.Sprintf("%s/documents/%d/download", Prefix, doc.ID)
		body["needs_download"] = true
	}
	return c.JSON(body)
}

type categoryPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) listCategories(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]fiber.Map, 0, len(s.categories))
	for _, cat := range s.sortedCategories() {
		count := 0
		for _, d := range s.documents {
			if d.CategoryID == cat.ID {
				count++
			}
		}
		out = append(out, fiber.Map{
			"id":             cat.ID,
			"name":           cat.Name,
			"description":    cat.Description,
			"document_count": count,
			"created_at":     cat.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"categories": out})
}

func (s *Server) createCategory(c *fiber.Ctx) error {
	var in categoryPayload
	if err := c.BodyParser(&in); err != nil {
		return message(c, fiber.StatusBadRequest, "invalid request body")
	}
	if msg := s.checkCategoryName(in.Name, 0); msg != "" {
		return message(c, fiber.StatusBadRequest, msg)
	}

	id := s.AddCategory(Category{Name: in.Name, Description: in.Description})
	s.mu.Lock()
	cat := s.categories[id]
	s.mu.Unlock()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "category created", "category": cat})
}

func (s *Server) updateCategory(c *fiber.Ctx) error {
	cat, ok, err := s.findCategory(c)
	if !ok {
		return err
	}

	var in categoryPayload
	if err := c.BodyParser(&in); err != nil {
		return message(c, fiber.StatusBadRequest, "invalid request body")
	}
	if msg := s.checkCategoryName(in.Name, cat.ID); msg != "" {
		return message(c, fiber.StatusBadRequest, msg)
	}

	cat.Name = in.Name
	cat.Description = in.Description
	s.mu.Lock()
	s.categories[cat.ID] = cat
	s.mu.Unlock()

	return c.JSON(fiber.Map{"message": "category updated", "category": cat})
}

func (s *Server) deleteCategory(c *fiber.Ctx) error {
	cat, ok, err := s.findCategory(c)
	if !ok {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, d := range s.documents {
		if d.CategoryID == cat.ID {
			count++
		}
	}
	if count > 0 {
		return message(c, fiber.StatusBadRequest, fmt.Sprintf("category still has %d documents", count))
	}
	delete(s.categories, cat.ID)
	return c.JSON(fiber.Map{"message": "category deleted"})
}

func (s *Server) findCategory(c *fiber.Ctx) (Category, bool, error) {
	id, err := c.ParamsInt("id")
	if err != nil {
		return Category{}, false, message(c, fiber.StatusBadRequest, "invalid category id")
	}

	s.mu.Lock()
	cat, ok := s.categories[int64(id)]
	s.mu.Unlock()
	if !ok {
		return Category{}, false, message(c, fiber.StatusNotFound, "category not found")
	}
	return cat, true, nil
}

func (s *Server) checkCategoryName(name string, self int64) string {
	if name == "" {
		return "category name is required"
	}
	if len(name) > 100 {
		return "category name must be at most 100 characters"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cat := range s.categories {
		if cat.ID != self && strings.EqualFold(cat.Name, name) {
			return "category name already exists"
		}
	}
	return ""
}

func (s *Server) sortedCategories() []Category {
	out := make([]Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
