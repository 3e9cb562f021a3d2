package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoleIgnoresCase(t *testing.T) {
	for _, in := range []string{"admin", "ADMIN", "Admin", " admin "} {
		role, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, RoleAdmin, role)
	}
	role, err := ParseRole("StUdEnT")
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, role)
}

func TestParseRoleRejectsUnknown(t *testing.T) {
	role, err := ParseRole("teacher")
	require.ErrorIs(t, err, ErrUnknownRole)
	assert.Equal(t, RoleUnknown, role)

	_, err = ParseRole("")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestRoleJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{RoleStudent})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"student"}`, string(data))

	var out struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"Admin"}`), &out))
	assert.Equal(t, RoleAdmin, out.Role)
}
