package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docguard/internal/domain"
	"docguard/internal/email"
)

// TwoFactorService coordina el ciclo de vida de los desafíos de verificación en dos pasos.
type TwoFactorService struct {
	logger      *zap.Logger
	store       TwoFactorChallengeStore
	emailSender email.Sender
	limiter     RateLimiter
}

var (
	ErrChallengeNotFound = errors.New("2fa session not found")
	ErrChallengeExpired  = errors.New("2fa session expired")
	ErrCodeInvalid       = errors.New("2fa code invalid")
	ErrTooManyAttempts   = errors.New("too many 2fa attempts")
	ErrRateLimited       = errors.New("rate limited")
	ErrEmailSendFailure  = errors.New("email send failed")
)

// Un desafío caduca a los 5 minutos de emitido; el cliente debe tratar
// un desafío inexistente como terminal y pedir login nuevamente.
const (
	challengeTTL    = 5 * time.Minute
	maxCodeAttempts = 5
)

func NewTwoFactorService(logger *zap.Logger, store TwoFactorChallengeStore, emailSender email.Sender, limiter RateLimiter) *TwoFactorService {
	if store == nil {
		store = NewMemoryChallengeStore()
	}
	if limiter == nil {
		limiter = NewMemoryRateLimiter(10*time.Minute, 3)
	}
	return &TwoFactorService{
		logger:      logger,
		store:       store,
		emailSender: emailSender,
		limiter:     limiter,
	}
}

// Begin genera un desafío para el usuario y envía el código por correo.
func (s *TwoFactorService) Begin(ctx context.Context, user domain.User) (string, error) {
	if s.limiter != nil && !s.limiter.Allow(user.Email) {
		return "", ErrRateLimited
	}

	code, hash, err := generateChallengeCode()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	challenge := domain.TwoFactorChallenge{
		SessionID: uuid.NewString(),
		UserID:    user.ID,
		CodeHash:  hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(challengeTTL),
	}
	if err := s.store.Save(challenge, challengeTTL); err != nil {
		return "", err
	}

	if s.emailSender == nil {
		return "", ErrEmailSendFailure
	}
	if err := s.emailSender.SendTwoFactorCode(ctx, user.Email, code, challenge.ExpiresAt); err != nil {
		if s.logger != nil {
			s.logger.Warn("send 2fa code failed", zap.Error(err), zap.String("email", user.Email))
		}
		_ = s.store.Delete(challenge.SessionID)
		return "", ErrEmailSendFailure
	}

	return challenge.SessionID, nil
}

// Verify valida el código contra el desafío y lo consume en éxito o fallo terminal.
func (s *TwoFactorService) Verify(ctx context.Context, sessionID, code string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	code = strings.TrimSpace(code)
	if sessionID == "" {
		return "", ErrChallengeNotFound
	}
	if !isValidChallengeCode(code) {
		return "", ErrCodeInvalid
	}

	challenge, ok, err := s.store.Get(sessionID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrChallengeNotFound
	}
	if challenge.Expired(time.Now().UTC()) {
		_ = s.store.Delete(sessionID)
		return "", ErrChallengeExpired
	}

	if !verifyChallengeCode(code, challenge.CodeHash) {
		challenge.Attempts++
		if challenge.Attempts >= maxCodeAttempts {
			_ = s.store.Delete(sessionID)
			return "", ErrTooManyAttempts
		}
		_ = s.store.Save(challenge, time.Until(challenge.ExpiresAt))
		return "", ErrCodeInvalid
	}

	if err := s.store.Delete(sessionID); err != nil && s.logger != nil {
		s.logger.Warn("delete 2fa challenge failed", zap.Error(err))
	}
	return challenge.UserID, nil
}

func generateChallengeCode() (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])

	return code, saltStr + ":" + hash, nil
}

func verifyChallengeCode(code, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	saltStr := parts[0]
	expectedHash := parts[1]
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(expectedHash)) == 1
}

func isValidChallengeCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
