package jobs

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func TestUserIDFromToken(t *testing.T) {
	require.Equal(t, "user-42", UserIDFromToken(signedToken(t, "user-42")))
	require.Empty(t, UserIDFromToken(""))
	require.Empty(t, UserIDFromToken("not-a-jwt"))
}

func TestMemoryRecorder(t *testing.T) {
	recorder := NewMemory()

	job := NewJob("user-42", "33234", "AC 0494", "done", []byte(`{"ok":true}`))
	require.NoError(t, recorder.Record(context.Background(), job))

	jobs := recorder.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, "user-42", jobs[0].UserID)
	require.Equal(t, "33234", jobs[0].INSEE)
	require.Equal(t, "AC 0494", jobs[0].ParcelLabel)
	require.NotEqual(t, jobs[0].ID.String(), "00000000-0000-0000-0000-000000000000")
	require.False(t, jobs[0].CreatedAt.IsZero())
}
