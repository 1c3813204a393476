package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/apperrors"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/models"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/store"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	store     store.Store
	jwtSecret []byte
	tokenTTL  time.Duration
	cost      int
	now       func() time.Time
}

func NewAuthService(st store.Store, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		store:     st,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		cost:      bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// Claims identify the user: Subject holds the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.Conflict("username or email already registered")
		}
		return nil, apperrors.Internal(err)
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &AuthResponse{Token: token, User: user}, nil
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid credentials")
		}
		return nil, apperrors.Internal(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &AuthResponse{Token: token, User: user}, nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user not found")
	}
	return user, nil
}

func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// ParseToken validates signature and expiry and returns the claims.
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}
	return claims, nil
}
