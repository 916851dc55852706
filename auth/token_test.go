package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier("my_strong_and_long_secret_key_2026", "chat-relay")

	token, err := verifier.GenerateToken("user-1", "sess-1", "Alice", time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := verifier.ValidateToken(token)
	req.NoError(err)
	req.Equal("user-1", claims.UserID)
	req.Equal("sess-1", claims.SessionID)
	req.Equal("Alice", claims.Name)
	req.Equal("chat-relay", claims.Issuer)
}

func TestValidateToken_Failures(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier("my_strong_and_long_secret_key_2026", "chat-relay")

	t.Run("Expired token", func(t *testing.T) {
		token, err := verifier.GenerateToken("user-1", "sess-1", "Alice", -time.Minute)
		req.NoError(err)

		_, err = verifier.ValidateToken(token)
		req.Error(err)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewVerifier("a_completely_different_secret_key!", "chat-relay")
		token, err := other.GenerateToken("user-1", "sess-1", "Alice", time.Hour)
		req.NoError(err)

		_, err = verifier.ValidateToken(token)
		req.Error(err)
	})

	t.Run("Garbage input", func(t *testing.T) {
		_, err := verifier.ValidateToken("not.a.token")
		req.Error(err)
	})
}
