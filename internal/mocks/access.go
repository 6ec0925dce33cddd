package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"notification-service/internal/models"
)

type RoleServiceMock struct {
	mock.Mock
}

func (m *RoleServiceMock) role(args mock.Arguments) (models.Role, error) {
	var role models.Role
	if val := args.Get(0); val != nil {
		role = val.(models.Role)
	}
	return role, args.Error(1)
}

func (m *RoleServiceMock) roles(args mock.Arguments) ([]models.Role, error) {
	var list []models.Role
	if val := args.Get(0); val != nil {
		list = val.([]models.Role)
	}
	return list, args.Error(1)
}

func (m *RoleServiceMock) Create(ctx context.Context, name, description string) (models.Role, error) {
	return m.role(m.Called(ctx, name, description))
}

func (m *RoleServiceMock) Get(ctx context.Context, id int) (models.Role, error) {
	return m.role(m.Called(ctx, id))
}

func (m *RoleServiceMock) List(ctx context.Context, page models.Page) ([]models.Role, error) {
	return m.roles(m.Called(ctx, page))
}

func (m *RoleServiceMock) ListArchived(ctx context.Context, page models.Page) ([]models.Role, error) {
	return m.roles(m.Called(ctx, page))
}

func (m *RoleServiceMock) Update(ctx context.Context, id int, name, description string) (models.Role, error) {
	return m.role(m.Called(ctx, id, name, description))
}

func (m *RoleServiceMock) Archive(ctx context.Context, id int) (models.Role, error) {
	return m.role(m.Called(ctx, id))
}

func (m *RoleServiceMock) Recover(ctx context.Context, id int) (models.Role, error) {
	return m.role(m.Called(ctx, id))
}

func (m *RoleServiceMock) Assign(ctx context.Context, accountID, roleID int) error {
	args := m.Called(ctx, accountID, roleID)
	return args.Error(0)
}

func (m *RoleServiceMock) Unassign(ctx context.Context, accountID, roleID int) (bool, error) {
	args := m.Called(ctx, accountID, roleID)
	return args.Bool(0), args.Error(1)
}

func (m *RoleServiceMock) RolesForAccount(ctx context.Context, accountID int) ([]models.Role, error) {
	return m.roles(m.Called(ctx, accountID))
}

type PermissionServiceMock struct {
	mock.Mock
}

func (m *PermissionServiceMock) permission(args mock.Arguments) (models.Permission, error) {
	var perm models.Permission
	if val := args.Get(0); val != nil {
		perm = val.(models.Permission)
	}
	return perm, args.Error(1)
}

func (m *PermissionServiceMock) permissions(args mock.Arguments) ([]models.Permission, error) {
	var list []models.Permission
	if val := args.Get(0); val != nil {
		list = val.([]models.Permission)
	}
	return list, args.Error(1)
}

func (m *PermissionServiceMock) Create(ctx context.Context, name, description string) (models.Permission, error) {
	return m.permission(m.Called(ctx, name, description))
}

func (m *PermissionServiceMock) Get(ctx context.Context, id int) (models.Permission, error) {
	return m.permission(m.Called(ctx, id))
}

func (m *PermissionServiceMock) List(ctx context.Context, page models.Page) ([]models.Permission, error) {
	return m.permissions(m.Called(ctx, page))
}

func (m *PermissionServiceMock) ListArchived(ctx context.Context, page models.Page) ([]models.Permission, error) {
	return m.permissions(m.Called(ctx, page))
}

func (m *PermissionServiceMock) Update(ctx context.Context, id int, name, description string) (models.Permission, error) {
	return m.permission(m.Called(ctx, id, name, description))
}

func (m *PermissionServiceMock) Archive(ctx context.Context, id int) (models.Permission, error) {
	return m.permission(m.Called(ctx, id))
}

func (m *PermissionServiceMock) Recover(ctx context.Context, id int) (models.Permission, error) {
	return m.permission(m.Called(ctx, id))
}

func (m *PermissionServiceMock) Attach(ctx context.Context, roleID, permissionID int) error {
	args := m.Called(ctx, roleID, permissionID)
	return args.Error(0)
}

func (m *PermissionServiceMock) Detach(ctx context.Context, roleID, permissionID int) (bool, error) {
	args := m.Called(ctx, roleID, permissionID)
	return args.Bool(0), args.Error(1)
}

func (m *PermissionServiceMock) PermissionsForRole(ctx context.Context, roleID int) ([]models.Permission, error) {
	return m.permissions(m.Called(ctx, roleID))
}
