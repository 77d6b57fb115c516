package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/stylebook/internal/auth"
	"github.com/BradenHooton/stylebook/internal/models"
	"github.com/BradenHooton/stylebook/internal/ratelimit"
	pkgauth "github.com/BradenHooton/stylebook/pkg/auth"
	pkglogger "github.com/BradenHooton/stylebook/pkg/logger"
)

// AdminUserRepository defines the admin account lookups used by login
type AdminUserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
}

// LoginLimiter locks out an IP or email after repeated failures.
type LoginLimiter interface {
	CheckAllowed(ctx context.Context, ip, email string) error
	RecordFailure(ctx context.Context, ip, email string)
	RecordSuccess(ctx context.Context, ip, email string)
}

// AuthService handles admin authentication business logic
type AuthService struct {
	users       AdminUserRepository
	tm          *auth.TokenManager
	limiter     LoginLimiter
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users AdminUserRepository,
	tm *auth.TokenManager,
	limiter LoginLimiter,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		users:       users,
		tm:          tm,
		limiter:     limiter,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Login checks the backoff lock for ip and email, verifies the password and
// returns an access token. Every credential failure extends the lockout.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*models.LoginResult, error) {
	start := time.Now()
	email = ratelimit.NormalizeEmailKey(email)

	if err := s.limiter.CheckAllowed(ctx, ip, email); err != nil {
		var limitErr *ratelimit.LimitError
		var retryAfter time.Duration
		if errors.As(err, &limitErr) {
			retryAfter = limitErr.RetryAfter
		}
		s.auditLogger.LogAdmissionRejected("login", ip, retryAfter)
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to get admin user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	reason := ""
	switch {
	case user == nil:
		reason = "invalid_credentials"
	case pkgauth.ComparePassword(user.PasswordHash, password) != nil:
		reason = "invalid_credentials"
	case !user.IsAdmin():
		reason = "account_disabled"
	}

	if reason != "" {
		s.limiter.RecordFailure(ctx, ip, email)
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			Subject:       pkglogger.SanitizedEmail(email),
			IPAddress:     ip,
			FailureReason: reason,
			Success:       false,
		})
		s.timing.WaitFrom(ctx, start)
		return nil, models.ErrUnauthorized
	}

	s.limiter.RecordSuccess(ctx, ip, email)

	token, err := s.tm.GenerateAccessToken(user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("admin logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		Subject:   pkglogger.SanitizedEmail(email),
		IPAddress: ip,
		Success:   true,
	})

	return &models.LoginResult{
		Token:     token,
		ExpiresIn: int64(s.tm.AccessTokenExpiry() / time.Second),
	}, nil
}
