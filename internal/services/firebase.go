package services

import (
	"context"
	"errors"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// SessionClaims is the verified identity behind an ID token or session cookie
type SessionClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
}

// Authenticator exchanges identity-provider tokens for server session cookies
type Authenticator interface {
	VerifyIDToken(ctx context.Context, idToken string) (*SessionClaims, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
	VerifySessionCookie(ctx context.Context, cookie string) (*SessionClaims, error)
}

var ErrAuthNotConfigured = errors.New("firebase auth not configured")

// FirebaseAuth implements Authenticator with the Firebase Admin SDK
type FirebaseAuth struct {
	client *auth.Client
}

// InitFirebase initializes the Firebase Admin SDK from a service account file
func InitFirebase(ctx context.Context, credPath string) (*FirebaseAuth, error) {
	opt := option.WithCredentialsFile(credPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebaseAuth{client: client}, nil
}

func claimsFromToken(token *auth.Token) *SessionClaims {
	c := &SessionClaims{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		c.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		c.Name = name
	}
	if admin, ok := token.Claims["admin"].(bool); ok {
		c.Admin = admin
	}
	return c
}

func (f *FirebaseAuth) VerifyIDToken(ctx context.Context, idToken string) (*SessionClaims, error) {
	if f == nil || f.client == nil {
		return nil, ErrAuthNotConfigured
	}
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return claimsFromToken(token), nil
}

func (f *FirebaseAuth) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	if f == nil || f.client == nil {
		return "", ErrAuthNotConfigured
	}
	return f.client.SessionCookie(ctx, idToken, expiresIn)
}

func (f *FirebaseAuth) VerifySessionCookie(ctx context.Context, cookie string) (*SessionClaims, error) {
	if f == nil || f.client == nil {
		return nil, ErrAuthNotConfigured
	}
	token, err := f.client.VerifySessionCookie(ctx, cookie)
	if err != nil {
		return nil, err
	}
	return claimsFromToken(token), nil
}
