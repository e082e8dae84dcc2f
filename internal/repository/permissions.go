package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

// PermissionRepository resolves actor roles from the scope_memberships
// table. It is the production implementation of the permission gate the
// workflow machine consults on every transition.
type PermissionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPermissionRepository creates a new permission repository.
func NewPermissionRepository(db *pgxpool.Pool, logger *logrus.Logger) *PermissionRepository {
	return &PermissionRepository{
		db:  db,
		log: logger,
	}
}

// HasRole reports whether the actor holds any of the given roles in the
// scope.
func (r *PermissionRepository) HasRole(ctx context.Context, actorID, scopeID string, roles ...domain.Role) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM scope_memberships
			WHERE actor_id = $1 AND scope_id = $2 AND role = ANY($3)
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, actorID, scopeID, names).Scan(&exists); err != nil {
		r.log.WithFields(logrus.Fields{
			"actor_id": actorID,
			"scope_id": scopeID,
			"error":    err,
		}).Error("Failed to check scope membership")
		return false, fmt.Errorf("checking scope membership: %w", err)
	}
	return exists, nil
}

// Grant adds a role membership for an actor in a scope. Granting an
// already-held role is a no-op.
func (r *PermissionRepository) Grant(ctx context.Context, actorID, scopeID string, role domain.Role, grantedBy string) error {
	if !role.IsValid() {
		return fmt.Errorf("granting role: unknown role %q", role)
	}

	query := `
		INSERT INTO scope_memberships (actor_id, scope_id, role, granted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (actor_id, scope_id, role) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, actorID, scopeID, role, grantedBy); err != nil {
		return fmt.Errorf("granting role: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"actor_id":   actorID,
		"scope_id":   scopeID,
		"role":       string(role),
		"granted_by": grantedBy,
	}).Info("Scope role granted")
	return nil
}

// Revoke removes a role membership.
func (r *PermissionRepository) Revoke(ctx context.Context, actorID, scopeID string, role domain.Role) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM scope_memberships WHERE actor_id = $1 AND scope_id = $2 AND role = $3`,
		actorID, scopeID, role)
	if err != nil {
		return fmt.Errorf("revoking role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("membership %s/%s/%s: %w", actorID, scopeID, role, domain.ErrNotFound)
	}
	return nil
}

// StaticGate is a file-backed permission gate for standalone deployments
// without a shared membership database. Role assignments are read once at
// startup.
type StaticGate struct {
	// assignments maps actor ID to roles. Assignments apply in every
	// scope; standalone deployments are single-team by construction.
	assignments map[string][]domain.Role
}

// NewStaticGate creates a gate over an in-memory assignment map.
func NewStaticGate(assignments map[string][]domain.Role) *StaticGate {
	if assignments == nil {
		assignments = make(map[string][]domain.Role)
	}
	return &StaticGate{assignments: assignments}
}

// LoadStaticGate reads role assignments from a JSON file of the form
// {"alice": ["curator"], "bob": ["reviewer", "admin"]}. A missing file
// yields an empty gate that denies everything.
func LoadStaticGate(path string) (*StaticGate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStaticGate(nil), nil
		}
		return nil, fmt.Errorf("reading role assignments: %w", err)
	}

	var parsed map[string][]string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing role assignments %s: %w", path, err)
	}

	assignments := make(map[string][]domain.Role, len(parsed))
	for actorID, names := range parsed {
		for _, name := range names {
			role := domain.Role(name)
			if !role.IsValid() {
				return nil, fmt.Errorf("role assignments %s: unknown role %q for actor %s", path, name, actorID)
			}
			assignments[actorID] = append(assignments[actorID], role)
		}
	}
	return NewStaticGate(assignments), nil
}

// HasRole reports whether the actor holds any of the given roles.
func (g *StaticGate) HasRole(_ context.Context, actorID, _ string, roles ...domain.Role) (bool, error) {
	held := g.assignments[actorID]
	for _, have := range held {
		for _, want := range roles {
			if have == want {
				return true, nil
			}
		}
	}
	return false, nil
}
