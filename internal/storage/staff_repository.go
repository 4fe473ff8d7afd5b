package storage

import (
	"context"
	"waitline/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var ErrStaffNotFound = errors.New("staff not found")

// StaffRepository stores staff accounts used by the dashboard login.
type StaffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

func (r *StaffRepository) FindByEmail(ctx context.Context, email string) (*models.Staff, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *StaffRepository) first(ctx context.Context, query string, arg string) (*models.Staff, error) {
	var staff models.Staff
	err := r.db.WithContext(ctx).Where(query, arg).First(&staff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStaffNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "storage: load staff")
	}
	return &staff, nil
}

// Create assigns an id when missing and inserts the account.
func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(staff).Error; err != nil {
		return errors.Wrapf(err, "storage: create staff %s", staff.Email)
	}
	return nil
}
