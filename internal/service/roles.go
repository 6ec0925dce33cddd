package service

import (
	"context"
	"fmt"
	"strings"

	"notification-service/internal/archive"
	"notification-service/internal/models"
	"notification-service/internal/repositories"
)

// RoleService manages roles and their assignment to accounts. A role cannot
// be archived or purged while any account holds it.
type RoleService struct {
	repo      repositories.RoleRepository
	lifecycle *archive.Lifecycle[models.Role]
}

func NewRoleService(repo repositories.RoleRepository, deps LifecycleDeps) *RoleService {
	deps.Logger = loggerOrDefault(deps.Logger)
	s := &RoleService{repo: repo}
	s.lifecycle = newLifecycle(deps, "role", repo.Active(), repo.Archived(), s.references,
		func(opts *archive.Options[models.Role]) {
			// Links to archived permissions come back with the role, so their
			// pending deletion must see the recovery.
			opts.BeforeRecover = repo.LockArchivedPermissions
		})
	return s
}

func (s *RoleService) references(ctx context.Context, id int) ([]archive.Reference, error) {
	accounts, err := s.repo.AccountsWithRole(ctx, id)
	if err != nil {
		return nil, err
	}
	refs := make([]archive.Reference, 0, len(accounts))
	for _, accountID := range accounts {
		refs = append(refs, archive.Reference{Kind: "account", ID: accountID})
	}
	return refs, nil
}

func (s *RoleService) Create(ctx context.Context, name, description string) (models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Role{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return s.repo.Create(ctx, name, description)
}

// Get resolves an active or archived role.
func (s *RoleService) Get(ctx context.Context, id int) (models.Role, error) {
	return s.lifecycle.Find(ctx, id)
}

func (s *RoleService) List(ctx context.Context, page models.Page) ([]models.Role, error) {
	return s.repo.Active().FindAllPage(ctx, page.Normalize())
}

func (s *RoleService) ListArchived(ctx context.Context, page models.Page) ([]models.Role, error) {
	return s.lifecycle.ListArchived(ctx, page)
}

// Update renames a role while holding its entity lock.
func (s *RoleService) Update(ctx context.Context, id int, name, description string) (models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Role{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return s.lifecycle.Update(ctx, id, func(role models.Role) (models.Role, error) {
		role.Name = name
		role.Description = description
		return role, nil
	})
}

func (s *RoleService) Archive(ctx context.Context, id int) (models.Role, error) {
	return s.lifecycle.Archive(ctx, id)
}

func (s *RoleService) Recover(ctx context.Context, id int) (models.Role, error) {
	return s.lifecycle.Recover(ctx, id)
}

func (s *RoleService) Assign(ctx context.Context, accountID, roleID int) error {
	if accountID <= 0 {
		return fmt.Errorf("%w: account id", ErrInvalidInput)
	}
	return s.repo.AssignToAccount(ctx, accountID, roleID)
}

func (s *RoleService) Unassign(ctx context.Context, accountID, roleID int) (bool, error) {
	return s.repo.UnassignFromAccount(ctx, accountID, roleID)
}

func (s *RoleService) RolesForAccount(ctx context.Context, accountID int) ([]models.Role, error) {
	return s.repo.RolesForAccount(ctx, accountID)
}
