package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIdentityValidate(t *testing.T) {
	valid := Identity{SubjectID: "1", Scope: []string{"admin"}, Status: StatusActive}

	tests := []struct {
		name   string
		mutate func(*Identity)
		err    error
	}{
		{name: "valid", mutate: func(*Identity) {}},
		{name: "no subject", mutate: func(i *Identity) { i.SubjectID = "" }, err: ErrMissingSubject},
		{name: "no scope", mutate: func(i *Identity) { i.Scope = nil }, err: ErrMissingScope},
		{name: "suspended", mutate: func(i *Identity) { i.Status = "suspended" }, err: ErrInactive},
		{name: "empty status", mutate: func(i *Identity) { i.Status = "" }, err: ErrInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := valid.Clone()
			tt.mutate(&id)
			err := id.Validate()
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestIdentityClone(t *testing.T) {
	orig := Identity{
		SubjectID: "1",
		Scope:     []string{"admin", "reader"},
		Name:      []HumanName{{Use: "en", Family: "Anik", Given: []string{"Sadman"}}},
	}

	c := orig.Clone()
	c.Scope[0] = "changed"
	c.Name[0].Given[0] = "changed"

	require.Equal(t, "admin", orig.Scope[0])
	require.Equal(t, "Sadman", orig.Name[0].Given[0])
}

func TestIdentityDisplayName(t *testing.T) {
	require.Empty(t, Identity{}.DisplayName())
	require.Equal(t, "Sadman Anik", Identity{Name: []HumanName{{Family: "Anik", Given: []string{"Sadman"}}}}.DisplayName())
	require.Equal(t, "Anik", Identity{Name: []HumanName{{Family: "Anik"}}}.DisplayName())
}

func TestExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	v := PendingVerification{ExpiresAt: now}
	require.True(t, v.IsExpired(now))
	require.False(t, v.IsExpired(now.Add(-time.Nanosecond)))

	k := SigningKey{ExpiresAt: now.Add(time.Hour)}
	require.False(t, k.IsExpired(now))
	require.True(t, k.IsExpired(now.Add(time.Hour)))
}
