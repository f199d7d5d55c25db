package directory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/pkg/cryptox"
)

func writeDirectoryFile(t *testing.T) string {
	t.Helper()

	hash, err := cryptox.HashPassword("2r23432")
	require.NoError(t, err)

	content := `
users:
  - userId: "1"
    username: sadman
    passwordHash: "` + hash + `"
    name:
      - use: en
        family: Anik
        given: [Sadman]
    scope: [admin]
    status: active
    mobile: "+345345343"
    email: test@test.org
  - userId: "2"
    username: dormant
    passwordHash: "` + hash + `"
    scope: [reader]
    status: deactivated
`
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileDirectory(t *testing.T) {
	d, err := LoadFile(writeDirectoryFile(t))
	require.NoError(t, err)
	ctx := t.Context()

	for _, identifier := range []string{"sadman", "+345345343", "TEST@test.org"} {
		t.Run("lookup by "+identifier, func(t *testing.T) {
			id, err := d.Verify(ctx, identifier, "2r23432")
			require.NoError(t, err)
			require.Equal(t, "1", id.SubjectID)
			require.Equal(t, []string{"admin"}, id.Scope)
			require.Equal(t, "Sadman Anik", id.DisplayName())
		})
	}

	t.Run("wrong password", func(t *testing.T) {
		_, err := d.Verify(ctx, "sadman", "wrong")
		require.ErrorIs(t, err, ErrRejected)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := d.Verify(ctx, "nobody", "2r23432")
		require.ErrorIs(t, err, ErrRejected)
	})

	t.Run("inactive accounts are returned as they are", func(t *testing.T) {
		id, err := d.Verify(ctx, "dormant", "2r23432")
		require.NoError(t, err)
		require.Equal(t, "deactivated", id.Status)
	})
}

func TestParseFileValidation(t *testing.T) {
	_, err := ParseFile([]byte("users:\n  - username: x\n    passwordHash: h\n"))
	require.ErrorContains(t, err, "userId")

	_, err = ParseFile([]byte("users:\n  - userId: \"1\"\n"))
	require.ErrorContains(t, err, "passwordHash")

	_, err = ParseFile([]byte("users: ["))
	require.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
