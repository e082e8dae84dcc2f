package setup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genecurator/gene-validity-server/internal/domain"
	"github.com/genecurator/gene-validity-server/internal/repository"
)

func newTestCLI(t *testing.T) (*CLI, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GENE_VALIDITY_DATA_DIR", dir)
	return NewCLI(), dir
}

func TestInitCreatesRoleFile(t *testing.T) {
	cli, dir := newTestCLI(t)

	require.NoError(t, cli.Run([]string{"init"}))

	raw, err := os.ReadFile(filepath.Join(dir, "roles.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(raw))

	// Re-running init never overwrites.
	require.NoError(t, cli.Run([]string{"grant", "alice", "curator"}))
	require.NoError(t, cli.Run([]string{"init"}))

	gate, err := repository.LoadStaticGate(filepath.Join(dir, "roles.json"))
	require.NoError(t, err)
	ok, err := gate.HasRole(context.Background(), "alice", "scope-1", domain.RoleCurator)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGrantAccumulatesRoles(t *testing.T) {
	cli, dir := newTestCLI(t)

	require.NoError(t, cli.Run([]string{"grant", "bob", "reviewer"}))
	require.NoError(t, cli.Run([]string{"grant", "bob", "admin"}))
	// Granting a held role is a no-op, not an error.
	require.NoError(t, cli.Run([]string{"grant", "bob", "admin"}))

	gate, err := repository.LoadStaticGate(filepath.Join(dir, "roles.json"))
	require.NoError(t, err)
	for _, role := range []domain.Role{domain.RoleReviewer, domain.RoleAdmin} {
		ok, err := gate.HasRole(context.Background(), "bob", "scope-1", role)
		require.NoError(t, err)
		assert.True(t, ok, string(role))
	}
}

func TestGrantRejectsUnknownRole(t *testing.T) {
	cli, _ := newTestCLI(t)
	err := cli.Run([]string{"grant", "bob", "superuser"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "superuser")
}

func TestValidateFailsOnMalformedRoleFile(t *testing.T) {
	cli, dir := newTestCLI(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roles.json"), []byte("not json"), 0o600))
	require.Error(t, cli.Run([]string{"validate"}))
}
