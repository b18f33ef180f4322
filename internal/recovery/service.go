// Package recovery issues and redeems single-use recovery codes, the backup
// path for administrators who lose their authenticator.
package recovery

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"stepup-gateway/internal/recovery/domain"
	"stepup-gateway/internal/recovery/repository"
	"stepup-gateway/internal/security"
)

const (
	codeCount = 10
	// Unambiguous uppercase alphabet (no 0/O, 1/I/L).
	codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	groupLen     = 4
	groupCount   = 2
)

// ErrNotRecognized is returned when a submitted recovery code matches no
// unused code for the administrator.
var ErrNotRecognized = errors.New("recovery: code not recognized or already used")

// Service issues and redeems recovery codes. Plaintext codes exist only in the
// issue response; storage holds bcrypt hashes.
type Service struct {
	repo   repository.Repository
	hasher *security.Hasher
	nowF   func() time.Time
}

// NewService returns a recovery code service.
func NewService(repo repository.Repository, hasher *security.Hasher) *Service {
	return &Service{repo: repo, hasher: hasher, nowF: func() time.Time { return time.Now().UTC() }}
}

// Issue replaces the administrator's recovery codes with a fresh set and
// returns the plaintext codes for one-time display.
func (s *Service) Issue(ctx context.Context, adminID string) ([]string, error) {
	plain := make([]string, 0, codeCount)
	stored := make([]*domain.RecoveryCode, 0, codeCount)
	now := s.nowF()
	for i := 0; i < codeCount; i++ {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash([]byte(normalize(code)))
		if err != nil {
			return nil, err
		}
		plain = append(plain, code)
		stored = append(stored, &domain.RecoveryCode{
			ID:        uuid.New().String(),
			AdminID:   adminID,
			CodeHash:  hash,
			CreatedAt: now,
		})
	}
	if err := s.repo.ReplaceForAdmin(ctx, adminID, stored); err != nil {
		return nil, err
	}
	return plain, nil
}

// Redeem consumes the submitted code if it matches an unused code for the
// administrator. Returns ErrNotRecognized otherwise.
func (s *Service) Redeem(ctx context.Context, adminID, code string) error {
	code = normalize(code)
	if code == "" {
		return ErrNotRecognized
	}
	active, err := s.repo.ListActiveByAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	for _, c := range active {
		if s.hasher.Compare(c.CodeHash, []byte(code)) == nil {
			return s.repo.MarkUsed(ctx, c.ID, s.nowF())
		}
	}
	return ErrNotRecognized
}

// normalize strips separators and upcases so "xk4p 29qj" matches "XK4P-29QJ".
// Hashes are always computed over the normalized form.
func normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, " ", "")
	code = strings.ReplaceAll(code, "-", "")
	return code
}

func generateCode() (string, error) {
	raw := make([]byte, groupLen*groupCount)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	var b strings.Builder
	for i, r := range raw {
		if i > 0 && i%groupLen == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(codeAlphabet[int(r)%len(codeAlphabet)])
	}
	return b.String(), nil
}
