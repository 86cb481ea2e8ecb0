package auth

import (
	"context"
	"crypto/subtle"
	"net/mail"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/greencart/internal/domain/user"
	"github.com/xenking/greencart/pkg/cart"
)

var (
	// ErrMissingDetails is returned when a registration lacks a field.
	ErrMissingDetails = errors.New("Missing Details")
	// ErrInvalidEmail is returned for a malformed email address.
	ErrInvalidEmail = errors.New("Invalid email")
	// ErrInvalidCredentials is returned for an unknown email or wrong
	// password.
	ErrInvalidCredentials = errors.New("Invalid email or password")
)

// SellerCredentials are the configured seller login.
type SellerCredentials struct {
	Email    string
	Password string
}

// Service registers and authenticates customers and the seller.
type Service struct {
	users  user.Repository
	tokens *Tokens
	seller SellerCredentials
	cost   int
	now    func() time.Time
}

// NewService creates an auth service.
func NewService(users user.Repository, tokens *Tokens, seller SellerCredentials) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		seller: seller,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// Session is an authenticated customer with a freshly issued token.
type Session struct {
	User  *user.User
	Token string
}

// Register creates a customer account and signs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingDetails
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	u := &user.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CartItems:    cart.Cart{},
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return s.session(u)
}

// Login authenticates a customer by email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingDetails
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "get user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

// SellerLogin checks the configured seller credentials and returns a
// seller token.
func (s *Service) SellerLogin(email, password string) (string, error) {
	if s.seller.Email == "" || s.seller.Password == "" {
		return "", ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(normalizeEmail(email)), []byte(normalizeEmail(s.seller.Email)))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.seller.Password))
	if emailOK&passOK != 1 {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(normalizeEmail(s.seller.Email), RoleSeller)
}

// Tokens returns the token issuer.
func (s *Service) Tokens() *Tokens { return s.tokens }

func (s *Service) session(u *user.User) (*Session, error) {
	token, err := s.tokens.Issue(u.ID, RoleUser)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
