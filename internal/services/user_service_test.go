package services

import (
	"context"
	"errors"
	"testing"

	"m3roodi/internal/models"
)

func TestUserCRUD(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	u, err := svc.Create(ctx, UserInput{Name: "سارة", Email: "Sara@Example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Email != "sara@example.com" || u.UserType != models.UserTypeMember {
		t.Errorf("created = %+v", u)
	}

	var vErr *ValidationError
	if _, err := svc.Create(ctx, UserInput{Name: "dup", Email: "sara@example.com"}); !errors.As(err, &vErr) {
		t.Errorf("duplicate email error = %v; want ValidationError", err)
	}

	id := u.ID
	seedRequest(t, db, models.Request{UserID: &id})

	got, err := svc.Get(ctx, u.ID)
	if err != nil || len(got.Requests) != 1 {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	updated, err := svc.Update(ctx, u.ID, UserInput{Name: "سارة علي", Email: "sara@example.com", UserType: models.UserTypeAdmin})
	if err != nil || !updated.IsAdmin() {
		t.Fatalf("Update = %+v, %v", updated, err)
	}

	list, _ := svc.List(ctx, "علي")
	if len(list) != 1 {
		t.Errorf("search returned %d users", len(list))
	}

	if err := svc.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
	var linked int64
	db.Model(&models.Request{}).Where("user_id = ?", u.ID).Count(&linked)
	if linked != 0 {
		t.Error("requests still linked to deleted user")
	}
}

func TestIsAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	svc.Create(ctx, UserInput{Name: "Admin", Email: "admin@m3roodi.com", UserType: models.UserTypeAdmin})
	svc.Create(ctx, UserInput{Name: "Member", Email: "member@example.com"})

	tests := []struct {
		name   string
		claims *SessionClaims
		want   bool
	}{
		{name: "nil claims", claims: nil, want: false},
		{name: "custom claim", claims: &SessionClaims{Email: "someone@example.com", Admin: true}, want: true},
		{name: "admin record", claims: &SessionClaims{Email: "ADMIN@m3roodi.com"}, want: true},
		{name: "member record", claims: &SessionClaims{Email: "member@example.com"}, want: false},
		{name: "unknown user", claims: &SessionClaims{Email: "ghost@example.com"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsAdmin(ctx, tt.claims)
			if err != nil || got != tt.want {
				t.Errorf("IsAdmin = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}

func TestEnsureFromClaims(t *testing.T) {
	svc := NewUserService(newTestDB(t))
	ctx := context.Background()
	claims := &SessionClaims{UID: "uid-1", Email: "New@Example.com", Name: "New"}

	first, err := svc.EnsureFromClaims(ctx, claims)
	if err != nil {
		t.Fatalf("EnsureFromClaims: %v", err)
	}
	second, err := svc.EnsureFromClaims(ctx, claims)
	if err != nil || second.ID != first.ID {
		t.Errorf("second call = %+v, %v; want same user", second, err)
	}
}
