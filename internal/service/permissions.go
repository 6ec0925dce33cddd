package service

import (
	"context"
	"fmt"
	"strings"

	"notification-service/internal/archive"
	"notification-service/internal/models"
	"notification-service/internal/repositories"
)

// PermissionService manages permissions and their attachment to roles. A
// permission cannot be archived or purged while attached to any role.
type PermissionService struct {
	repo      repositories.PermissionRepository
	lifecycle *archive.Lifecycle[models.Permission]
}

func NewPermissionService(repo repositories.PermissionRepository, deps LifecycleDeps) *PermissionService {
	deps.Logger = loggerOrDefault(deps.Logger)
	s := &PermissionService{repo: repo}
	s.lifecycle = newLifecycle(deps, "permission", repo.Active(), repo.Archived(), s.references)
	return s
}

func (s *PermissionService) references(ctx context.Context, id int) ([]archive.Reference, error) {
	roles, err := s.repo.RolesWithPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	refs := make([]archive.Reference, 0, len(roles))
	for _, roleID := range roles {
		refs = append(refs, archive.Reference{Kind: "role", ID: roleID})
	}
	return refs, nil
}

func (s *PermissionService) Create(ctx context.Context, name, description string) (models.Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Permission{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return s.repo.Create(ctx, name, description)
}

func (s *PermissionService) Get(ctx context.Context, id int) (models.Permission, error) {
	return s.lifecycle.Find(ctx, id)
}

func (s *PermissionService) List(ctx context.Context, page models.Page) ([]models.Permission, error) {
	return s.repo.Active().FindAllPage(ctx, page.Normalize())
}

func (s *PermissionService) ListArchived(ctx context.Context, page models.Page) ([]models.Permission, error) {
	return s.lifecycle.ListArchived(ctx, page)
}

func (s *PermissionService) Update(ctx context.Context, id int, name, description string) (models.Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Permission{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return s.lifecycle.Update(ctx, id, func(p models.Permission) (models.Permission, error) {
		p.Name = name
		p.Description = description
		return p, nil
	})
}

func (s *PermissionService) Archive(ctx context.Context, id int) (models.Permission, error) {
	return s.lifecycle.Archive(ctx, id)
}

func (s *PermissionService) Recover(ctx context.Context, id int) (models.Permission, error) {
	return s.lifecycle.Recover(ctx, id)
}

func (s *PermissionService) Attach(ctx context.Context, roleID, permissionID int) error {
	return s.repo.AttachToRole(ctx, roleID, permissionID)
}

func (s *PermissionService) Detach(ctx context.Context, roleID, permissionID int) (bool, error) {
	return s.repo.DetachFromRole(ctx, roleID, permissionID)
}

func (s *PermissionService) PermissionsForRole(ctx context.Context, roleID int) ([]models.Permission, error) {
	return s.repo.PermissionsForRole(ctx, roleID)
}
