package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"m3roodi/internal/models"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// UserInput is the admin-editable user record
type UserInput struct {
	Name     string          `json:"name" validate:"required,max=255"`
	Email    string          `json:"email" validate:"required,email"`
	Phone    string          `json:"phone" validate:"max=50"`
	IDNumber string          `json:"id_number" validate:"max=50"`
	UserType models.UserType `json:"user_type" validate:"omitempty,oneof=Admin Member"`
}

func (in UserInput) apply(u *models.User) {
	u.Name = strings.TrimSpace(in.Name)
	u.Email = strings.ToLower(strings.TrimSpace(in.Email))
	u.Phone = strings.TrimSpace(in.Phone)
	u.IDNumber = strings.TrimSpace(in.IDNumber)
	u.UserType = in.UserType
	if u.UserType == "" {
		u.UserType = models.UserTypeMember
	}
}

func (s *UserService) List(ctx context.Context, query string) ([]models.User, error) {
	var users []models.User
	q := s.db.WithContext(ctx).Order("created_at desc")
	if term := strings.ToLower(strings.TrimSpace(query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", like, like, like)
	}
	err := q.Find(&users).Error
	return users, err
}

// Get returns a user with their requests
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Requests", func(db *gorm.DB) *gorm.DB { return db.Order("created_at desc") }).
		First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	if _, err := s.FindByEmail(ctx, in.Email); err == nil {
		return nil, newValidationError("email", "البريد مستخدم مسبقاً / email already registered")
	}
	var user models.User
	in.apply(&user)
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) Update(ctx context.Context, id uint, in UserInput) (*models.User, error) {
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if other, err := s.FindByEmail(ctx, in.Email); err == nil && other.ID != id {
		return nil, newValidationError("email", "البريد مستخدم مسبقاً / email already registered")
	}
	in.apply(&user)
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes the user; their requests stay and are unlinked
func (s *UserService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return tx.Model(&models.Request{}).Where("user_id = ?", id).Update("user_id", nil).Error
	})
}

// EnsureFromClaims returns the user for a verified session, creating a member
// record on first login.
func (s *UserService) EnsureFromClaims(ctx context.Context, claims *SessionClaims) (*models.User, error) {
	if claims == nil || claims.Email == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.FindByEmail(ctx, claims.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user = &models.User{
		Name:     claims.Name,
		Email:    strings.ToLower(claims.Email),
		UserType: models.UserTypeMember,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// IsAdmin reports whether the session belongs to an administrator, either by
// custom claim or by an Admin user record.
func (s *UserService) IsAdmin(ctx context.Context, claims *SessionClaims) (bool, error) {
	if claims == nil {
		return false, nil
	}
	if claims.Admin {
		return true, nil
	}
	if claims.Email == "" {
		return false, nil
	}
	user, err := s.FindByEmail(ctx, claims.Email)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsAdmin(), nil
}
