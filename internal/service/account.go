// Package service contains the business logic layer of the portal.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)    → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Gateway (Data layer)     → reads/writes through the remote API
//
// The portal keeps no member data of its own. Where a typical service would
// call a repository, these services call the gateway, which is the remote
// REST API behind a Go interface. Each service declares the slice of the
// gateway it needs, so tests pass small hand-written fakes.
//
// Services accept primitives and DTOs, never *http.Request, and return
// apperror values that the handler layer maps to status codes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/matrimony-portal/internal/apperror"
	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/gateway"
	"github.com/sakif/matrimony-portal/internal/model"
	"github.com/sakif/matrimony-portal/internal/ratelimit"
	"github.com/sakif/matrimony-portal/internal/validator"
)

// Forgot-password budget: this many requests per email and per client IP,
// refilling one every ResetRefill.
const (
	ResetBurst  = 3
	ResetRefill = 15 * time.Minute
)

const (
	registeredMessage = "Registration successful. Please sign in."
	resetSentMessage  = "If an account exists for that email, a reset link has been sent."
	resetDoneMessage  = "Your password has been reset. Please sign in."
	contactMessage    = "Message sent successfully!"
	adminAddedMessage = "Admin registered successfully."
)

// AccountGateway is the part of the remote API used for account flows.
type AccountGateway interface {
	Register(ctx context.Context, r gateway.Registration) (string, error)
	RegisterAdmin(ctx context.Context, caller model.Caller, name, email, password string) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (string, error)
	SubmitContact(ctx context.Context, email, message string) (string, error)
}

// RegisterInput is the public sign-up form.
type RegisterInput struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required,len=10,numeric"`
	Gender          string `json:"gender" validate:"required,oneof=Male Female"`
	Password        string `json:"password" validate:"required,min=6,max=128"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Agree           bool   `json:"agree"`
}

// AdminRegisterInput is the form an admin uses to add another admin.
type AdminRegisterInput struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,max=128"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ResetInput is the reset-password form reached from the mailed link.
type ResetInput struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ContactInput is the public contact form.
type ContactInput struct {
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,max=2000"`
}

// AccountService runs the flows that happen outside a signed-in session:
// registration, password recovery, the contact form. Admin registration
// lives here too since it shares the form rules.
type AccountService struct {
	gw       AccountGateway
	validate *validator.Validator
	limiter  *ratelimit.Keyed
	logger   *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(gw AccountGateway, v *validator.Validator, limiter *ratelimit.Keyed, logger *slog.Logger) *AccountService {
	return &AccountService{
		gw:       gw,
		validate: v,
		limiter:  limiter,
		logger:   logger,
	}
}

// Register creates a member account and returns the message to show.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.validate.Validate(in); err != nil {
		return "", err
	}
	if !in.Agree {
		return "", apperror.ValidationFailed("agree", "You must agree to continue")
	}

	msg, err := s.gw.Register(ctx, gateway.Registration{
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Gender:   in.Gender,
		Password: in.Password,
	})
	if err != nil {
		return "", fmt.Errorf("registering member: %w", err)
	}

	s.logger.Info("member registered", slog.String("email", in.Email))
	return orDefault(msg, registeredMessage), nil
}

// RegisterAdmin adds an admin account on behalf of a signed-in admin.
func (s *AccountService) RegisterAdmin(ctx context.Context, caller model.Caller, in AdminRegisterInput) (string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Validate(in); err != nil {
		return "", err
	}

	msg, err := s.gw.RegisterAdmin(ctx, caller, in.Name, in.Email, in.Password)
	if err != nil {
		return "", fmt.Errorf("registering admin: %w", err)
	}

	s.logger.Info("admin registered", slog.String("email", in.Email))
	return orDefault(msg, adminAddedMessage), nil
}

// ForgotPassword asks the remote API to mail a reset link.
//
// Each email and each client IP get ResetBurst attempts, refilled one per
// ResetRefill. A request over either budget is refused without contacting
// the remote API and without charging the other budget.
func (s *AccountService) ForgotPassword(ctx context.Context, email, clientIP string) (string, error) {
	email = strings.TrimSpace(email)
	in := struct {
		Email string `json:"email" validate:"required,email"`
	}{Email: email}
	if err := s.validate.Validate(in); err != nil {
		return "", err
	}

	emailKey, ipKey := "email:"+email, ""
	if clientIP != "" {
		ipKey = "ip:" + clientIP
	}
	if !s.limiter.AllowAll(emailKey, ipKey) {
		wait := max(s.limiter.RetryAfter(emailKey), s.limiter.RetryAfter(ipKey))
		s.logger.Warn("forgot-password rate limited",
			slog.String("email", email),
			slog.String("ip", clientIP),
		)
		return "", apperror.RateLimited(fmt.Sprintf(
			"Too many reset requests. Please try again in %d minutes.", minutesCeil(wait)))
	}

	msg, err := s.gw.ForgotPassword(ctx, email)
	if err != nil {
		return "", fmt.Errorf("requesting password reset: %w", err)
	}
	return orDefault(msg, resetSentMessage), nil
}

// ResetPassword sets a new password. The new password must pass every
// strength rule and match its confirmation.
func (s *AccountService) ResetPassword(ctx context.Context, in ResetInput) (string, error) {
	if err := s.validate.Validate(in); err != nil {
		return "", err
	}
	if check := auth.CheckPassword(in.NewPassword); !check.Valid {
		return "", apperror.ValidationFailed("newPassword", check.Errors[0])
	}
	if in.NewPassword != in.ConfirmPassword {
		return "", apperror.ValidationFailed("confirmPassword", "Passwords do not match")
	}

	msg, err := s.gw.ResetPassword(ctx, in.Token, in.NewPassword, in.ConfirmPassword)
	if err != nil {
		return "", fmt.Errorf("resetting password: %w", err)
	}
	return orDefault(msg, resetDoneMessage), nil
}

// PasswordStrength reports the rule check and meter reading for pw. It
// makes no remote call.
func (s *AccountService) PasswordStrength(pw string) auth.PasswordCheck {
	return auth.CheckPassword(pw)
}

// SubmitContact files a contact-form query.
func (s *AccountService) SubmitContact(ctx context.Context, in ContactInput) (string, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Message = strings.TrimSpace(in.Message)
	if err := s.validate.Validate(in); err != nil {
		return "", err
	}

	msg, err := s.gw.SubmitContact(ctx, in.Email, in.Message)
	if err != nil {
		return "", fmt.Errorf("submitting contact query: %w", err)
	}
	return orDefault(msg, contactMessage), nil
}

// PruneLimits forgets rate-limit buckets that have fully refilled.
func (s *AccountService) PruneLimits() int {
	return s.limiter.Prune()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func minutesCeil(d time.Duration) int {
	m := int((d + time.Minute - 1) / time.Minute)
	return max(m, 1)
}
