package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/email"
	"ptcoach/pt-manager/internal/guard"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/repository"
)

// --- Error Definitions ---
var (
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrNotClientAccount     = errors.New("this account cannot sign in to the client portal")
	ErrWeakPassword         = errors.New("password must be at least 6 characters")
	ErrResetTokenInvalid    = errors.New("reset link is invalid or expired")
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
	ErrInvalidToken         = errors.New("invalid or expired token")
)

const MinPasswordLength = 6

// Claims is the JWT payload. RegisteredClaims.ID is the session id.
type Claims struct {
	UserID string      `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult is returned by a successful sign-in.
type LoginResult struct {
	Token      string      `json:"token"`
	ExpiresAt  time.Time   `json:"expiresAt"`
	UserID     string      `json:"userId"`
	Name       string      `json:"name"`
	Role       domain.Role `json:"role"`
	FirstLogin bool        `json:"firstLogin"`
}

type AuthService interface {
	AdminLogin(ctx context.Context, email, password string) (*LoginResult, error)
	ClientLogin(ctx context.Context, email, password string) (*LoginResult, error)
	ParseToken(token string) (*Claims, error)
	// Logout revokes the session for the rest of its lifetime.
	Logout(claims *Claims)
	// ResolveSession reads the identity's backing record and runs the
	// session gate. forced reports a sign-out caused by a role mismatch;
	// the session is revoked in that case.
	ResolveSession(ctx context.Context, claims *Claims) (session *guard.Session, forced bool, err error)
	ChangePassword(ctx context.Context, userID primitive.ObjectID, role domain.Role, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	// EnsureAdmin creates the coach account if no account uses email yet.
	EnsureAdmin(ctx context.Context, name, email, password string) (bool, error)
}

type authService struct {
	coachRepo     repository.CoachRepository
	clientRepo    repository.ClientRepository
	resetRepo     repository.PasswordResetRepository
	mailer        *email.Mailer
	revocations   *guard.Revocations
	log           logging.Logger
	jwtSecret     string
	jwtExpiration time.Duration
	resetTTL      time.Duration
	now           func() time.Time
}

func NewAuthService(
	coachRepo repository.CoachRepository,
	clientRepo repository.ClientRepository,
	resetRepo repository.PasswordResetRepository,
	mailer *email.Mailer,
	revocations *guard.Revocations,
	log logging.Logger,
	jwtSecret string,
	jwtExpiration time.Duration,
	resetTTL time.Duration,
) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty")
	}
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour
	}
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &authService{
		coachRepo:     coachRepo,
		clientRepo:    clientRepo,
		resetRepo:     resetRepo,
		mailer:        mailer,
		revocations:   revocations,
		log:           log.With("service", "auth"),
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		resetTTL:      resetTTL,
		now:           time.Now,
	}
}

// AdminLogin signs the coach in.
func (s *authService) AdminLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrAuthenticationFailed
	}

	coach, err := s.coachRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(coach.PasswordHash), []byte(password)) != nil {
		return nil, ErrAuthenticationFailed
	}

	res, err := s.issue(coach.ID.Hex(), domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	res.Name = coach.Name
	s.log.Info(ctx, "admin signed in", "coachId", res.UserID)
	return res, nil
}

// ClientLogin signs a client in. The backing record must carry the client
// role flag.
func (s *authService) ClientLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrAuthenticationFailed
	}

	client, err := s.clientRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(client.PasswordHash), []byte(password)) != nil {
		return nil, ErrAuthenticationFailed
	}
	if !client.IsClient {
		return nil, ErrNotClientAccount
	}

	res, err := s.issue(client.ID.Hex(), domain.RoleClient)
	if err != nil {
		return nil, err
	}
	res.Name = client.Name
	res.FirstLogin = client.FirstLogin
	s.log.Info(ctx, "client signed in", "clientId", res.UserID, "firstLogin", client.FirstLogin)
	return res, nil
}

func (s *authService) issue(userID string, role domain.Role) (*LoginResult, error) {
	now := s.now()
	expiresAt := now.Add(s.jwtExpiration)
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "pt-manager",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, ErrTokenGeneration
	}
	return &LoginResult{Token: signed, ExpiresAt: expiresAt, UserID: userID, Role: role}, nil
}

// ParseToken validates signature, expiry and revocation.
func (s *authService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if s.revocations.IsRevoked(claims.ID) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) Logout(claims *Claims) {
	until := s.now().Add(s.jwtExpiration)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	s.revocations.Revoke(claims.ID, until)
}

// ResolveSession returns a LOADING session together with the error when the
// backing record cannot be read.
func (s *authService) ResolveSession(ctx context.Context, claims *Claims) (*guard.Session, bool, error) {
	sess := &guard.Session{ID: claims.ID, IdentityID: claims.UserID, Marker: claims.Role}
	in := guard.Inputs{Authenticated: true, Marker: claims.Role}

	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		in.Authenticated = false
	}

	isCoach := false
	if in.Authenticated {
		client, err := s.clientRepo.GetByID(ctx, id)
		switch {
		case err == nil:
			in.IsClientRole = client.IsClient
			sess.FirstLogin = client.FirstLogin
			sess.Name = client.Name
		case errors.Is(err, repository.ErrNotFound):
			coach, cerr := s.coachRepo.GetByID(ctx, id)
			switch {
			case cerr == nil:
				isCoach = true
				sess.Name = coach.Name
			case errors.Is(cerr, repository.ErrNotFound):
				// identity deleted while the token was still valid
				in.Authenticated = false
			default:
				sess.State = guard.StateLoading
				return sess, false, cerr
			}
		default:
			sess.State = guard.StateLoading
			return sess, false, err
		}
	}

	d := guard.Resolve(in)
	sess.State = d.State
	if d.State == guard.StateAdmin && !isCoach {
		sess.State = guard.StateUnauthenticated
	}
	if d.ForceSignOut {
		s.Logout(claims)
		s.log.Warn(ctx, "session role mismatch, signed out", "userId", claims.UserID, "marker", claims.Role)
	}
	return sess, d.ForceSignOut, nil
}

// ChangePassword sets a new password. For clients this also ends the
// first-access state and discards the staged temporary password.
func (s *authService) ChangePassword(ctx context.Context, userID primitive.ObjectID, role domain.Role, newPassword string) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	switch role {
	case domain.RoleClient:
		err = s.clientRepo.SetPassword(ctx, userID, hash)
	case domain.RoleAdmin:
		err = s.coachRepo.SetPassword(ctx, userID, hash)
	default:
		return fmt.Errorf("%w: unknown role %q", ErrValidationFailed, role)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAuthenticationFailed
		}
		return err
	}
	s.log.Info(ctx, "password changed", "userId", userID.Hex(), "role", role)
	return nil
}

// RequestPasswordReset never reveals whether the address is known.
func (s *authService) RequestPasswordReset(ctx context.Context, address string) error {
	address = normalizeEmail(address)
	if address == "" {
		return fmt.Errorf("%w: email is required", ErrValidationFailed)
	}

	id, name, role, err := s.lookupIdentity(ctx, address)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Info(ctx, "password reset for unknown address")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	reset := &domain.PasswordReset{
		TokenHash:  hashToken(token),
		IdentityID: id,
		Role:       role,
		ExpiresAt:  now.Add(s.resetTTL),
		CreatedAt:  now,
	}
	if err := s.resetRepo.Create(ctx, reset); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if err := s.mailer.SendPasswordReset(ctx, address, name, token, s.resetTTL.String()); err != nil {
		s.log.Error(ctx, "password reset email failed", "error", err, "userId", id.Hex())
		return err
	}
	return nil
}

func (s *authService) lookupIdentity(ctx context.Context, address string) (primitive.ObjectID, string, domain.Role, error) {
	client, err := s.clientRepo.GetByEmail(ctx, address)
	if err == nil {
		return client.ID, client.Name, domain.RoleClient, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return primitive.NilObjectID, "", "", err
	}
	coach, err := s.coachRepo.GetByEmail(ctx, address)
	if err != nil {
		return primitive.NilObjectID, "", "", err
	}
	return coach.ID, coach.Name, domain.RoleAdmin, nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}
	if token == "" {
		return ErrResetTokenInvalid
	}
	reset, err := s.resetRepo.Consume(ctx, hashToken(token), s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	if err := s.ChangePassword(ctx, reset.IdentityID, reset.Role, newPassword); err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			return ErrResetTokenInvalid
		}
		return err
	}
	return nil
}

func (s *authService) EnsureAdmin(ctx context.Context, name, address, password string) (bool, error) {
	address = normalizeEmail(address)
	if address == "" {
		return false, nil
	}
	_, err := s.coachRepo.GetByEmail(ctx, address)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return false, err
	}
	coach := &domain.Coach{Name: strings.TrimSpace(name), Email: address, PasswordHash: hash}
	if _, err := s.coachRepo.Create(ctx, coach); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	s.log.Info(ctx, "admin account created", "coachId", coach.ID.Hex())
	return true, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(hashed), nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Only the hash of a reset token is stored.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
