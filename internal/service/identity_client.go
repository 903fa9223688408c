package service

import (
	"context"
	"fmt"
	"time"

	"esgbridge-data/internal/config"
	"esgbridge-data/internal/tenant"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// IdentityClient 外部身份提供方客户端接口
// 身份认证在平台外完成；这里只换取 (user_id, organization_id, roles) 三元组
type IdentityClient interface {
	// ResolveIdentity 用访问令牌换取调用者身份
	ResolveIdentity(ctx context.Context, accessToken string) (*tenant.Identity, error)
}

// userinfoResponse IdP userinfo 端点的响应体
type userinfoResponse struct {
	UserID         string   `json:"user_id"`
	OrganizationID string   `json:"organization_id"`
	Roles          []string `json:"roles"`
}

// identityClient 外部身份提供方客户端实现
type identityClient struct {
	client *resty.Client
	logger *zap.Logger
}

// NewIdentityClient 创建身份提供方客户端
func NewIdentityClient(cfg *config.IdentityProviderConfig, logger *zap.Logger) IdentityClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	return &identityClient{client: client, logger: logger}
}

// ResolveIdentity 用访问令牌换取调用者身份
// IdP 不返回组织时仍然返回身份：下游 tenant.Resolve 会推导出 DenyAll
func (c *identityClient) ResolveIdentity(ctx context.Context, accessToken string) (*tenant.Identity, error) {
	var info userinfoResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&info).
		Get("/v1/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to call identity provider: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode())
	}
	if info.UserID == "" {
		return nil, fmt.Errorf("identity provider returned no user")
	}

	return &tenant.Identity{
		UserID:         info.UserID,
		OrganizationID: info.OrganizationID,
		Roles:          info.Roles,
	}, nil
}
