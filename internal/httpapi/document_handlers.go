package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/notionclone/notionclone/internal/document"
	"github.com/notionclone/notionclone/internal/models"
)

// DocumentHandler exposes the document operations over HTTP.
type DocumentHandler struct {
	svc *document.Service
}

// NewDocumentHandler constructs a document handler.
func NewDocumentHandler(svc *document.Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// docJSON shapes a document for API responses.
func docJSON(doc *models.Document, subPages int64) gin.H {
	body := gin.H{
		"id":              doc.ID,
		"title":           doc.Title,
		"content":         doc.Content,
		"icon":            doc.Icon,
		"cover":           doc.Cover,
		"owner-id":        doc.OwnerID,
		"parent-id":       doc.ParentID,
		"is-favorite":     doc.IsFavorite,
		"is-archived":     doc.IsArchived,
		"is-public":       doc.IsPublic,
		"public-slug":     doc.PublicSlug,
		"allow-comments":  doc.AllowComments,
		"sub-pages-count": subPages,
		"created-at":      doc.CreatedAt.Format(time.RFC3339),
		"updated-at":      doc.UpdatedAt.Format(time.RFC3339),
	}
	if doc.LastEditedByID != nil {
		body["last-edited-by"] = *doc.LastEditedByID
	}
	return body
}

// docBody shapes a single document, resolving its live child count.
// On failure it writes the error response and reports false.
func (h *DocumentHandler) docBody(c *gin.Context, doc *models.Document) (gin.H, bool) {
	counts, errCounts := h.svc.SubPageCounts(c.Request.Context(), []string{doc.ID})
	if errCounts != nil {
		writeError(c, errCounts)
		return nil, false
	}
	return docJSON(doc, counts[doc.ID]), true
}

// docListBody shapes a document slice, resolving child counts in one query.
// On failure it writes the error response and reports false.
func (h *DocumentHandler) docListBody(c *gin.Context, docs []models.Document) ([]gin.H, bool) {
	ids := make([]string, 0, len(docs))
	for i := range docs {
		ids = append(ids, docs[i].ID)
	}
	counts, errCounts := h.svc.SubPageCounts(c.Request.Context(), ids)
	if errCounts != nil {
		writeError(c, errCounts)
		return nil, false
	}
	result := make([]gin.H, 0, len(docs))
	for i := range docs {
		result = append(result, docJSON(&docs[i], counts[docs[i].ID]))
	}
	return result, true
}

// shareJSON shapes a share grant with its recipient for API responses.
func shareJSON(info *document.ShareInfo) gin.H {
	return gin.H{
		"document-id": info.Share.DocumentID,
		"permission":  info.Share.Permission,
		"shared-at":   info.Share.SharedAt.Format(time.RFC3339),
		"user": gin.H{
			"id":       info.User.ID,
			"name":     info.User.Name,
			"username": info.User.Username,
			"email":    info.User.Email,
			"avatar":   info.User.Avatar,
		},
	}
}

type createDocumentRequest struct {
	Title    string  `json:"title" binding:"required"`
	Content  string  `json:"content"`
	Icon     string  `json:"icon"`
	Cover    string  `json:"cover"`
	ParentID *string `json:"parent-id"`
}

// Create handles POST /api/documents.
func (h *DocumentHandler) Create(c *gin.Context) {
	var req createDocumentRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		bindError(c, errBind)
		return
	}
	user := CurrentUser(c)
	doc, errCreate := h.svc.Create(c.Request.Context(), user, document.CreateInput{
		Title:    req.Title,
		Content:  req.Content,
		Icon:     req.Icon,
		Cover:    req.Cover,
		ParentID: req.ParentID,
	})
	if errCreate != nil {
		writeError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": docJSON(doc, 0)})
}

// Get handles GET /api/documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	user := CurrentUser(c)
	doc, access, errGet := h.svc.Get(c.Request.Context(), user.ID, c.Param("id"))
	if errGet != nil {
		writeError(c, errGet)
		return
	}
	body, ok := h.docBody(c, doc)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": body, "access": access})
}

type updateDocumentRequest struct {
	Title         *string `json:"title"`
	Content       *string `json:"content"`
	Icon          *string `json:"icon"`
	Cover         *string `json:"cover"`
	IsFavorite    *bool   `json:"is-favorite"`
	IsArchived    *bool   `json:"is-archived"`
	AllowComments *bool   `json:"allow-comments"`
}

// Update handles PATCH /api/documents/:id.
func (h *DocumentHandler) Update(c *gin.Context) {
	var req updateDocumentRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		bindError(c, errBind)
		return
	}
	user := CurrentUser(c)
	doc, errUpdate := h.svc.Update(c.Request.Context(), user.ID, c.Param("id"), document.UpdateInput{
		Title:         req.Title,
		Content:       req.Content,
		Icon:          req.Icon,
		Cover:         req.Cover,
		IsFavorite:    req.IsFavorite,
		IsArchived:    req.IsArchived,
		AllowComments: req.AllowComments,
	})
	if errUpdate != nil {
		writeError(c, errUpdate)
		return
	}
	body, ok := h.docBody(c, doc)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": body})
}

// Delete handles DELETE /api/documents/:id.
func (h *DocumentHandler) Delete(c *gin.Context) {
	user := CurrentUser(c)
	if errDelete := h.svc.Delete(c.Request.Context(), user.ID, c.Param("id")); errDelete != nil {
		writeError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ListMain handles GET /api/documents.
func (h *DocumentHandler) ListMain(c *gin.Context) {
	user := CurrentUser(c)
	docs, errList := h.svc.ListMain(c.Request.Context(), user.ID)
	if errList != nil {
		writeError(c, errList)
		return
	}
	body, ok := h.docListBody(c, docs)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": body})
}

// SubPages handles GET /api/documents/:id/sub-pages.
func (h *DocumentHandler) SubPages(c *gin.Context) {
	user := CurrentUser(c)
	docs, errList := h.svc.SubPages(c.Request.Context(), user.ID, c.Param("id"))
	if errList != nil {
		writeError(c, errList)
		return
	}
	body, ok := h.docListBody(c, docs)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": body})
}

// Favorites handles GET /api/documents/favorites.
func (h *DocumentHandler) Favorites(c *gin.Context) {
	user := CurrentUser(c)
	docs, errList := h.svc.Favorites(c.Request.Context(), user.ID)
	if errList != nil {
		writeError(c, errList)
		return
	}
	body, ok := h.docListBody(c, docs)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": body})
}

// Archived handles GET /api/documents/archived.
func (h *DocumentHandler) Archived(c *gin.Context) {
	user := CurrentUser(c)
	docs, errList := h.svc.Archived(c.Request.Context(), user.ID)
	if errList != nil {
		writeError(c, errList)
		return
	}
	body, ok := h.docListBody(c, docs)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": body})
}

// Search handles GET /api/documents/search?q=.
func (h *DocumentHandler) Search(c *gin.Context) {
	user := CurrentUser(c)
	docs, errSearch := h.svc.Search(c.Request.Context(), user.ID, c.Query("q"))
	if errSearch != nil {
		writeError(c, errSearch)
		return
	}
	body, ok := h.docListBody(c, docs)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": body})
}

// SharedWithMe handles GET /api/documents/shared-with-me.
func (h *DocumentHandler) SharedWithMe(c *gin.Context) {
	user := CurrentUser(c)
	docs, errList := h.svc.SharedWithMe(c.Request.Context(), user.ID)
	if errList != nil {
		writeError(c, errList)
		return
	}
	body, ok := h.docListBody(c, docs)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": body})
}

type setPublicRequest struct {
	IsPublic      *bool  `json:"is-public" binding:"required"`
	PublicSlug    string `json:"public-slug"`
	AllowComments *bool  `json:"allow-comments"`
}

// SetPublic handles PATCH /api/documents/:id/public.
func (h *DocumentHandler) SetPublic(c *gin.Context) {
	var req setPublicRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		bindError(c, errBind)
		return
	}
	user := CurrentUser(c)
	doc, errSet := h.svc.SetPublic(c.Request.Context(), user.ID, c.Param("id"), *req.IsPublic, req.PublicSlug, req.AllowComments)
	if errSet != nil {
		writeError(c, errSet)
		return
	}
	body, ok := h.docBody(c, doc)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": body})
}

// GetPublic handles GET /api/public/documents/:slug without auth.
func (h *DocumentHandler) GetPublic(c *gin.Context) {
	doc, errGet := h.svc.GetByPublicSlug(c.Request.Context(), c.Param("slug"))
	if errGet != nil {
		writeError(c, errGet)
		return
	}
	body, ok := h.docBody(c, doc)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": body})
}

type shareRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Permission string `json:"permission"`
}

// Share handles POST /api/documents/:id/shares.
func (h *DocumentHandler) Share(c *gin.Context) {
	var req shareRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		bindError(c, errBind)
		return
	}
	user := CurrentUser(c)
	info, errShare := h.svc.Share(c.Request.Context(), user.ID, c.Param("id"), document.ShareInput{
		Email:      req.Email,
		Permission: req.Permission,
	})
	if errShare != nil {
		writeError(c, errShare)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"share": shareJSON(info)})
}

// Shares handles GET /api/documents/:id/shares.
func (h *DocumentHandler) Shares(c *gin.Context) {
	user := CurrentUser(c)
	infos, errList := h.svc.Shares(c.Request.Context(), user.ID, c.Param("id"))
	if errList != nil {
		writeError(c, errList)
		return
	}
	shares := make([]gin.H, 0, len(infos))
	for i := range infos {
		shares = append(shares, shareJSON(&infos[i]))
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares})
}

// Unshare handles DELETE /api/documents/:id/shares/:userId.
func (h *DocumentHandler) Unshare(c *gin.Context) {
	user := CurrentUser(c)
	errRevoke := h.svc.Unshare(c.Request.Context(), user.ID, c.Param("id"), c.Param("userId"))
	if errRevoke != nil {
		writeError(c, errRevoke)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
