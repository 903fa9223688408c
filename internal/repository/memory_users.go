package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"

	"github.com/google/uuid"
)

// MemoryUsersRepo 用户目录内存实现（单元测试用）
type MemoryUsersRepo struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMemoryUsersRepo 创建内存用户Repository
func NewMemoryUsersRepo() *MemoryUsersRepo {
	return &MemoryUsersRepo{users: map[string]*domain.User{}}
}

// 确保实现了接口
var _ UsersRepository = (*MemoryUsersRepo)(nil)

func (r *MemoryUsersRepo) CreateUser(_ context.Context, user *domain.User) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.OrganizationID == "" || user.UserAccount == "" {
		return "", fmt.Errorf("organization_id and user_account are required")
	}
	for _, existing := range r.users {
		if existing.OrganizationID == user.OrganizationID && existing.UserAccount == user.UserAccount {
			return "", fmt.Errorf("user account already exists in organization: %s", user.UserAccount)
		}
	}
	row := *user
	row.UserID = uuid.NewString()
	if row.Status == "" {
		row.Status = "active"
	}
	row.CreatedAt = time.Now()
	r.users[row.UserID] = &row
	return row.UserID, nil
}

func (r *MemoryUsersRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	cp := *user
	return &cp, nil
}

func (r *MemoryUsersRepo) ListUsers(_ context.Context, scope tenant.Scope, organizationID string, page, size int) ([]*domain.User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := []*domain.User{}
	for _, user := range r.users {
		if scope.DenyAll {
			continue
		}
		if !scope.Allows(user.OrganizationID) {
			continue
		}
		if organizationID != "" && user.OrganizationID != organizationID {
			continue
		}
		cp := *user
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserAccount < all[j].UserAccount })

	total := len(all)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
