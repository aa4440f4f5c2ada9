// Package document implements the hierarchical page store: CRUD, quotas,
// sharing, and public publishing.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notionclone/notionclone/internal/apperr"
	"github.com/notionclone/notionclone/internal/db"
	"github.com/notionclone/notionclone/internal/models"
	"github.com/notionclone/notionclone/internal/sanitize"
	"gorm.io/gorm"
)

// Access levels resolved for a document and user.
const (
	// AccessOwner marks the document owner.
	AccessOwner = "OWNER"
)

// Service implements document operations over the database.
type Service struct {
	db *gorm.DB
}

// NewService constructs a document service.
func NewService(conn *gorm.DB) *Service {
	return &Service{db: conn}
}

// CreateInput carries the fields of a new document.
type CreateInput struct {
	Title    string
	Content  string
	Icon     string
	Cover    string
	ParentID *string
}

// UpdateInput carries a partial document patch. Nil fields are untouched.
type UpdateInput struct {
	Title         *string
	Content       *string
	Icon          *string
	Cover         *string
	IsFavorite    *bool
	IsArchived    *bool
	AllowComments *bool
}

// ShareInput carries a share grant request.
type ShareInput struct {
	Email      string
	Permission string
}

// ShareInfo is a share grant joined with the recipient's identity.
type ShareInfo struct {
	Share models.DocumentShare
	User  models.User
}

// Create stores a new document for the owner. Main and sub-page counts
// are capped by the owner's plan, and sub-pages may only hang off a main
// page so the tree never exceeds two levels.
func (s *Service) Create(ctx context.Context, owner *models.User, in CreateInput) (*models.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("missing_title", "title is required")
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:            uuid.NewString(),
		Title:         title,
		Content:       sanitize.Sanitize(in.Content),
		Icon:          strings.TrimSpace(in.Icon),
		Cover:         strings.TrimSpace(in.Cover),
		OwnerID:       owner.ID,
		ParentID:      in.ParentID,
		AllowComments: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ParentID != nil {
			var parent models.Document
			errFind := tx.
				Where("id = ? AND owner_id = ? AND deleted_at IS NULL", *in.ParentID, owner.ID).
				First(&parent).Error
			if errFind != nil {
				if errors.Is(errFind, gorm.ErrRecordNotFound) {
					return apperr.NotFound("parent_not_found", "parent document not found")
				}
				return fmt.Errorf("document: find parent: %w", errFind)
			}
			if parent.ParentID != nil {
				return apperr.Validation("nesting_too_deep", "sub-pages cannot have their own sub-pages")
			}
			if limit := models.MaxSubPages(owner.Plan); limit >= 0 {
				var count int64
				if errCount := tx.Model(&models.Document{}).
					Where("parent_id = ? AND deleted_at IS NULL", parent.ID).
					Count(&count).Error; errCount != nil {
					return fmt.Errorf("document: count sub-pages: %w", errCount)
				}
				if count >= limit {
					return apperr.Business("sub_page_limit_reached", "sub-page limit reached for this plan").
						WithDetails(map[string]any{"limit": limit})
				}
			}
		} else if limit := models.MaxMainPages(owner.Plan); limit >= 0 {
			var count int64
			if errCount := tx.Model(&models.Document{}).
				Where("owner_id = ? AND parent_id IS NULL AND deleted_at IS NULL", owner.ID).
				Count(&count).Error; errCount != nil {
				return fmt.Errorf("document: count main pages: %w", errCount)
			}
			if count >= limit {
				return apperr.Business("main_page_limit_reached", "main page limit reached for this plan").
					WithDetails(map[string]any{"limit": limit})
			}
		}
		if errCreate := tx.Create(doc).Error; errCreate != nil {
			return fmt.Errorf("document: create: %w", errCreate)
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return doc, nil
}

// Get returns a document the user may read, with the resolved access
// level: OWNER, EDIT, or VIEW.
func (s *Service) Get(ctx context.Context, userID, docID string) (*models.Document, string, error) {
	doc, errLoad := s.load(ctx, docID)
	if errLoad != nil {
		return nil, "", errLoad
	}
	access, errAccess := s.accessLevel(ctx, doc, userID)
	if errAccess != nil {
		return nil, "", errAccess
	}
	if access == "" {
		return nil, "", apperr.Forbidden("access_denied", "no access to this document")
	}
	return doc, access, nil
}

// Update applies a partial patch. The owner and users holding an EDIT
// share may write; content is re-sanitized on every change.
func (s *Service) Update(ctx context.Context, userID, docID string, in UpdateInput) (*models.Document, error) {
	doc, errLoad := s.loadForWrite(ctx, userID, docID)
	if errLoad != nil {
		return nil, errLoad
	}

	updates := map[string]any{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperr.Validation("missing_title", "title must not be empty")
		}
		updates["title"] = title
	}
	if in.Content != nil {
		updates["content"] = sanitize.Sanitize(*in.Content)
	}
	if in.Icon != nil {
		updates["icon"] = strings.TrimSpace(*in.Icon)
	}
	if in.Cover != nil {
		updates["cover"] = strings.TrimSpace(*in.Cover)
	}
	if in.IsFavorite != nil {
		updates["is_favorite"] = *in.IsFavorite
	}
	if in.IsArchived != nil {
		updates["is_archived"] = *in.IsArchived
	}
	if in.AllowComments != nil {
		updates["allow_comments"] = *in.AllowComments
	}
	if len(updates) == 0 {
		return doc, nil
	}
	updates["last_edited_by_id"] = userID
	updates["updated_at"] = time.Now().UTC()

	if errUpdate := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND deleted_at IS NULL", doc.ID).
		Updates(updates).Error; errUpdate != nil {
		return nil, fmt.Errorf("document: update: %w", errUpdate)
	}
	return s.load(ctx, docID)
}

// Delete soft-deletes a document the user may write. Documents with live
// sub-pages must have them deleted first. Publishing state is cleared so
// the slug can be reused.
func (s *Service) Delete(ctx context.Context, userID, docID string) error {
	doc, errLoad := s.loadForWrite(ctx, userID, docID)
	if errLoad != nil {
		return errLoad
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var children int64
		if errCount := tx.Model(&models.Document{}).
			Where("parent_id = ? AND deleted_at IS NULL", doc.ID).
			Count(&children).Error; errCount != nil {
			return fmt.Errorf("document: count children: %w", errCount)
		}
		if children > 0 {
			return apperr.Business("has_sub_pages", "delete or move sub-pages first").
				WithDetails(map[string]any{"sub_pages": children})
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Document{}).
			Where("id = ? AND deleted_at IS NULL", doc.ID).
			Updates(map[string]any{
				"deleted_at":  now,
				"is_public":   false,
				"public_slug": nil,
				"updated_at":  now,
			})
		if res.Error != nil {
			return fmt.Errorf("document: delete: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("document_not_found", "document not found")
		}
		if errShares := tx.
			Where("document_id = ?", doc.ID).
			Delete(&models.DocumentShare{}).Error; errShares != nil {
			return fmt.Errorf("document: delete shares: %w", errShares)
		}
		return nil
	})
}

// SetPublic publishes or unpublishes a document the user may write.
// Publishing requires a slug, which must not be in use by any other live
// document.
func (s *Service) SetPublic(ctx context.Context, userID, docID string, public bool, slug string, allowComments *bool) (*models.Document, error) {
	doc, errLoad := s.loadForWrite(ctx, userID, docID)
	if errLoad != nil {
		return nil, errLoad
	}

	updates := map[string]any{
		"is_public":  public,
		"updated_at": time.Now().UTC(),
	}
	if allowComments != nil {
		updates["allow_comments"] = *allowComments
	}

	if !public {
		updates["public_slug"] = nil
		if errUpdate := s.db.WithContext(ctx).Model(&models.Document{}).
			Where("id = ?", doc.ID).Updates(updates).Error; errUpdate != nil {
			return nil, fmt.Errorf("document: unpublish: %w", errUpdate)
		}
		return s.load(ctx, docID)
	}

	normalized := slugify(slug)
	if strings.TrimSpace(slug) == "" {
		// Republishing keeps the existing slug.
		if doc.PublicSlug == nil {
			return nil, apperr.Validation("missing_slug", "a public slug is required")
		}
		normalized = *doc.PublicSlug
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if errCount := tx.Model(&models.Document{}).
			Where("public_slug = ? AND id <> ? AND deleted_at IS NULL", normalized, doc.ID).
			Count(&taken).Error; errCount != nil {
			return fmt.Errorf("document: check slug: %w", errCount)
		}
		if taken > 0 {
			return apperr.Business("slug_taken", "this slug is already in use")
		}
		updates["public_slug"] = normalized
		if errUpdate := tx.Model(&models.Document{}).
			Where("id = ?", doc.ID).Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("document: publish: %w", errUpdate)
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return s.load(ctx, docID)
}

// GetByPublicSlug returns a published document by its slug.
func (s *Service) GetByPublicSlug(ctx context.Context, slug string) (*models.Document, error) {
	var doc models.Document
	errFind := s.db.WithContext(ctx).
		Where("public_slug = ? AND is_public = ? AND deleted_at IS NULL", slug, true).
		First(&doc).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("document_not_found", "document not found")
		}
		return nil, fmt.Errorf("document: find by slug: %w", errFind)
	}
	return &doc, nil
}

// ListMain returns the user's top-level pages, most recently updated first.
func (s *Service) ListMain(ctx context.Context, userID string) ([]models.Document, error) {
	return s.list(ctx, s.db.WithContext(ctx).
		Where("owner_id = ? AND parent_id IS NULL AND is_archived = ? AND deleted_at IS NULL", userID, false))
}

// SubPages returns the children of a document the user may read.
func (s *Service) SubPages(ctx context.Context, userID, parentID string) ([]models.Document, error) {
	if _, _, errGet := s.Get(ctx, userID, parentID); errGet != nil {
		return nil, errGet
	}
	return s.list(ctx, s.db.WithContext(ctx).
		Where("parent_id = ? AND is_archived = ? AND deleted_at IS NULL", parentID, false))
}

// Favorites returns the user's favorited pages.
func (s *Service) Favorites(ctx context.Context, userID string) ([]models.Document, error) {
	return s.list(ctx, s.db.WithContext(ctx).
		Where("owner_id = ? AND is_favorite = ? AND is_archived = ? AND deleted_at IS NULL", userID, true, false))
}

// Archived returns the user's archived pages.
func (s *Service) Archived(ctx context.Context, userID string) ([]models.Document, error) {
	return s.list(ctx, s.db.WithContext(ctx).
		Where("owner_id = ? AND is_archived = ? AND deleted_at IS NULL", userID, true))
}

// Search matches titles of the user's own live documents, case-insensitively.
func (s *Service) Search(ctx context.Context, userID, query string) ([]models.Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Document{}, nil
	}
	pattern := db.NormalizeLikePattern(s.db, "%"+query+"%")
	return s.list(ctx, s.db.WithContext(ctx).
		Where("owner_id = ? AND deleted_at IS NULL", userID).
		Where(db.CaseInsensitiveLikeExpr(s.db, "title"), pattern))
}

// SharedWithMe returns documents other users have shared with this user.
func (s *Service) SharedWithMe(ctx context.Context, userID string) ([]models.Document, error) {
	sharedIDs := s.db.Model(&models.DocumentShare{}).
		Select("document_id").
		Where("shared_with_id = ?", userID)
	return s.list(ctx, s.db.WithContext(ctx).
		Where("id IN (?) AND deleted_at IS NULL", sharedIDs))
}

// SubPageCounts returns live child counts keyed by parent document ID.
// Parents without children are absent from the map.
func (s *Service) SubPageCounts(ctx context.Context, ids []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	type countRow struct {
		ParentID string
		Total    int64
	}
	var rows []countRow
	errScan := s.db.WithContext(ctx).Model(&models.Document{}).
		Select("parent_id AS parent_id, COUNT(*) AS total").
		Where("parent_id IN ? AND deleted_at IS NULL", ids).
		Group("parent_id").
		Scan(&rows).Error
	if errScan != nil {
		return nil, fmt.Errorf("document: count sub-pages: %w", errScan)
	}
	for _, row := range rows {
		counts[row.ParentID] = row.Total
	}
	return counts, nil
}

// Share grants or updates VIEW/EDIT access for another user, looked up
// by email. Only the owner may share, and not with themselves.
func (s *Service) Share(ctx context.Context, ownerID, docID string, in ShareInput) (*ShareInfo, error) {
	permission := strings.ToUpper(strings.TrimSpace(in.Permission))
	if permission == "" {
		permission = models.PermissionView
	}
	if permission != models.PermissionView && permission != models.PermissionEdit {
		return nil, apperr.Validation("invalid_permission", "permission must be VIEW or EDIT")
	}

	doc, errLoad := s.load(ctx, docID)
	if errLoad != nil {
		return nil, errLoad
	}
	if doc.OwnerID != ownerID {
		return nil, apperr.Forbidden("access_denied", "only the owner can share a document")
	}

	var target models.User
	errFind := s.db.WithContext(ctx).
		Where("email = ? AND deleted_at IS NULL AND status <> ?",
			strings.ToLower(strings.TrimSpace(in.Email)), models.StatusDeleted).
		First(&target).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user_not_found", "no account for this email")
		}
		return nil, fmt.Errorf("document: find share target: %w", errFind)
	}
	if target.ID == ownerID {
		return nil, apperr.Business("self_share", "cannot share a document with yourself")
	}

	now := time.Now().UTC()
	var share models.DocumentShare
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errExisting := tx.
			Where("document_id = ? AND shared_with_id = ?", doc.ID, target.ID).
			First(&share).Error
		switch {
		case errExisting == nil:
			if errUpdate := tx.Model(&models.DocumentShare{}).
				Where("id = ?", share.ID).
				Update("permission", permission).Error; errUpdate != nil {
				return fmt.Errorf("document: update share: %w", errUpdate)
			}
			share.Permission = permission
			return nil
		case errors.Is(errExisting, gorm.ErrRecordNotFound):
			share = models.DocumentShare{
				ID:           uuid.NewString(),
				DocumentID:   doc.ID,
				SharedWithID: target.ID,
				SharedByID:   ownerID,
				Permission:   permission,
				SharedAt:     now,
			}
			if errCreate := tx.Create(&share).Error; errCreate != nil {
				return fmt.Errorf("document: create share: %w", errCreate)
			}
			return nil
		default:
			return fmt.Errorf("document: find share: %w", errExisting)
		}
	})
	if errTx != nil {
		return nil, errTx
	}
	return &ShareInfo{Share: share, User: target}, nil
}

// Shares lists the grants on an owner's document with recipient identities.
func (s *Service) Shares(ctx context.Context, ownerID, docID string) ([]ShareInfo, error) {
	doc, errLoad := s.load(ctx, docID)
	if errLoad != nil {
		return nil, errLoad
	}
	if doc.OwnerID != ownerID {
		return nil, apperr.Forbidden("access_denied", "only the owner can list shares")
	}

	var shares []models.DocumentShare
	if errList := s.db.WithContext(ctx).
		Where("document_id = ?", doc.ID).
		Order("shared_at ASC").
		Find(&shares).Error; errList != nil {
		return nil, fmt.Errorf("document: list shares: %w", errList)
	}

	result := make([]ShareInfo, 0, len(shares))
	for _, share := range shares {
		var user models.User
		if errUser := s.db.WithContext(ctx).
			First(&user, "id = ?", share.SharedWithID).Error; errUser != nil {
			if errors.Is(errUser, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("document: load share recipient: %w", errUser)
		}
		result = append(result, ShareInfo{Share: share, User: user})
	}
	return result, nil
}

// Unshare revokes a user's access to an owner's document.
func (s *Service) Unshare(ctx context.Context, ownerID, docID, targetUserID string) error {
	doc, errLoad := s.load(ctx, docID)
	if errLoad != nil {
		return errLoad
	}
	if doc.OwnerID != ownerID {
		return apperr.Forbidden("access_denied", "only the owner can revoke shares")
	}

	res := s.db.WithContext(ctx).
		Where("document_id = ? AND shared_with_id = ?", doc.ID, targetUserID).
		Delete(&models.DocumentShare{})
	if res.Error != nil {
		return fmt.Errorf("document: revoke share: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("share_not_found", "no share for this user")
	}
	return nil
}

// load fetches a non-deleted document by ID.
func (s *Service) load(ctx context.Context, docID string) (*models.Document, error) {
	var doc models.Document
	errFind := s.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", docID).
		First(&doc).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("document_not_found", "document not found")
		}
		return nil, fmt.Errorf("document: find: %w", errFind)
	}
	return &doc, nil
}

// loadForWrite fetches a document and checks the user may write it: the
// owner or a holder of an EDIT share.
func (s *Service) loadForWrite(ctx context.Context, userID, docID string) (*models.Document, error) {
	doc, errLoad := s.load(ctx, docID)
	if errLoad != nil {
		return nil, errLoad
	}
	access, errAccess := s.accessLevel(ctx, doc, userID)
	if errAccess != nil {
		return nil, errAccess
	}
	if access != AccessOwner && access != models.PermissionEdit {
		return nil, apperr.Forbidden("access_denied", "no write access to this document")
	}
	return doc, nil
}

// accessLevel resolves the user's access to a document: OWNER, the share
// permission, or empty when none.
func (s *Service) accessLevel(ctx context.Context, doc *models.Document, userID string) (string, error) {
	if doc.OwnerID == userID {
		return AccessOwner, nil
	}
	var share models.DocumentShare
	errFind := s.db.WithContext(ctx).
		Where("document_id = ? AND shared_with_id = ?", doc.ID, userID).
		First(&share).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("document: find share: %w", errFind)
	}
	return share.Permission, nil
}

// list runs a prepared query ordered by recency.
func (s *Service) list(ctx context.Context, query *gorm.DB) ([]models.Document, error) {
	var docs []models.Document
	if errList := query.Order("updated_at DESC").Find(&docs).Error; errList != nil {
		return nil, fmt.Errorf("document: list: %w", errList)
	}
	return docs, nil
}
