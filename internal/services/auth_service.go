package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/vmorozov/droplink/internal/models"
	"github.com/vmorozov/droplink/internal/store"
)

var (
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthService registers link owners and issues JWT session tokens.
type AuthService struct {
	users  store.UserStore
	secret []byte
}

func NewAuthService(users store.UserStore, secret string) *AuthService {
	return &AuthService{users: users, secret: []byte(secret)}
}

func (a *AuthService) Register(ctx context.Context, email, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:        primitive.NewObjectID(),
		Email:     email,
		Password:  string(hash),
		CreatedAt: time.Now(),
	}
	err = a.users.Insert(ctx, &user)
	if errors.Is(err, store.ErrDuplicate) {
		return models.User{}, ErrEmailInUse
	}
	if err != nil {
		return models.User{}, err
	}

	user.Password = ""
	return user, nil
}

func (a *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	claims := jwt.MapClaims{
		"user_id": user.ID.Hex(),
		"exp":     time.Now().Add(4 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
