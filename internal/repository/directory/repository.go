package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/zapcampaign/zapcampaign/internal/domain"
)

// Repository is the gorm-backed directory of contacts and groups used
// by recipient resolution. Only exact id matches are returned; the
// resolver decides what a missing id means.
type Repository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ResolveContacts(ctx context.Context, ownerID string, ids []string) ([]domain.Contact, error) {
	var contacts []domain.Contact
	q := r.db.WithContext(ctx).Where("id IN ?", ids)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	err := q.Find(&contacts).Error
	return contacts, err
}

func (r *Repository) ResolveGroups(ctx context.Context, ownerID string, ids []string) ([]domain.Group, error) {
	var groups []domain.Group
	q := r.db.WithContext(ctx).Where("id IN ?", ids)
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	err := q.Find(&groups).Error
	return groups, err
}
