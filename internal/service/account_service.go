package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/digkill/productgenius/internal/catalog"
	"github.com/digkill/productgenius/internal/models"
	"github.com/digkill/productgenius/internal/repository"
)

// AdminCredentials is the statically configured administrator identity.
type AdminCredentials struct {
	Email    string
	Password string
}

// AccountService authenticates principals and opens new business accounts.
type AccountService struct {
	log      *slog.Logger
	users    repository.UserStore
	admin    AdminCredentials
	hashCost int
	now      func() time.Time
}

func NewAccountService(log *slog.Logger, users repository.UserStore, admin AdminCredentials) *AccountService {
	if log == nil {
		log = slog.Default()
	}
	admin.Email = normalizeEmail(admin.Email)
	return &AccountService{
		log:      log,
		users:    users,
		admin:    admin,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Login resolves credentials to a principal. The administrator never touches the store.
func (s *AccountService) Login(ctx context.Context, email, password string) (models.Principal, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if s.IsAdmin(email, password) {
		return models.AdminPrincipal{Email: s.admin.Email}, nil
	}
	if s.admin.Email != "" && email == s.admin.Email {
		return nil, ErrInvalidCredentials
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	s.log.Info("user logged in", "user_id", user.ID)
	return models.BusinessPrincipal{User: *user}, nil
}

// IsAdmin reports whether the credentials match the configured administrator.
func (s *AccountService) IsAdmin(email, password string) bool {
	if s.admin.Email == "" || s.admin.Password == "" {
		return false
	}
	emailOK := subtle.ConstantTimeCompare([]byte(normalizeEmail(email)), []byte(s.admin.Email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
	return emailOK && passOK
}

// Register opens a free trial account: one credit valid for seven days.
func (s *AccountService) Register(ctx context.Context, email, businessName, password string) (*models.User, error) {
	return s.create(ctx, NewAccount{
		Email:        email,
		BusinessName: businessName,
		Password:     password,
		Package:      models.PackageFree,
	})
}

// Refresh re-reads a business principal from the store.
func (s *AccountService) Refresh(ctx context.Context, p models.Principal) (models.Principal, error) {
	switch v := p.(type) {
	case models.AdminPrincipal:
		return v, nil
	case models.BusinessPrincipal:
		user, err := getUser(ctx, s.users, v.User.ID)
		if err != nil {
			return nil, err
		}
		return models.BusinessPrincipal{User: *user}, nil
	default:
		return nil, fmt.Errorf("%w: unknown principal", ErrInvalidInput)
	}
}

type NewAccount struct {
	Email        string             `json:"email"`
	BusinessName string             `json:"business_name"`
	Password     string             `json:"password"`
	Package      models.PackageCode `json:"package"`
}

func (s *AccountService) create(ctx context.Context, in NewAccount) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, fmt.Errorf("%w: invalid email %q", ErrInvalidInput, in.Email)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if email == s.admin.Email {
		return nil, ErrDuplicateEmail
	}
	if in.Package == "" {
		in.Package = models.PackageFree
	}
	def, err := catalog.DefinitionOf(in.Package)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	if _, err := s.findByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	expiry, err := catalog.ExpiryFor(def.Code, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		BusinessName: strings.TrimSpace(in.BusinessName),
		PasswordHash: string(hash),
		Credits:      def.Credits,
		Package:      def.Code,
		ExpiresAt:    &expiry,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("account created", "user_id", user.ID, "package", user.Package)
	return user, nil
}

// findByEmail scans the store; records are keyed by id, not email.
func (s *AccountService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, ErrAccountNotFound
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
