package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/GuiSantosdev/clivus-dev-sub001/repository"
)

const credentialAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const credentialLength = 16

// AccessService grants and revokes product access and provisions the
// one-time credential. The plaintext credential is returned exactly once
// to the caller; only its bcrypt hash is ever stored.
type AccessService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewAccessService(users repository.UserRepository, logger *zap.Logger) *AccessService {
	return &AccessService{users: users, logger: logger}
}

// Grant sets the user's access flag and, when the user has no credential
// yet, stores a freshly generated one. The returned plaintext is empty
// when the user already had a credential.
func (s *AccessService) Grant(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	plaintext, err := generateCredential(credentialLength)
	if err != nil {
		return "", false, fmt.Errorf("generating credential: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", false, fmt.Errorf("hashing credential: %w", err)
	}

	set, err := s.users.GrantAccess(ctx, userID, string(hash))
	if err != nil {
		return "", false, fmt.Errorf("granting access: %w", err)
	}
	if !set {
		// User already has a credential; the fresh one is discarded.
		return "", false, nil
	}
	return plaintext, true, nil
}

func (s *AccessService) Revoke(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.RevokeAccess(ctx, userID); err != nil {
		return fmt.Errorf("revoking access: %w", err)
	}
	return nil
}

func generateCredential(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(credentialAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = credentialAlphabet[n.Int64()]
	}
	return string(out), nil
}
