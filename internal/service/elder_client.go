package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"wisefido-careplan/internal/store"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ElderDirectory 长者档案查询（创建计划前确认长者存在）
type ElderDirectory interface {
	ElderExists(ctx context.Context, elderID string) (bool, error)
}

// elderCacheTTL 已确认存在的长者缓存时长；不存在的结果不缓存
const elderCacheTTL = 10 * time.Minute

// ElderDirectoryClient 长者档案服务 HTTP 客户端
type ElderDirectoryClient struct {
	httpClient *resty.Client
	cache      *store.ElderCache
	logger     *zap.Logger
}

// NewElderDirectoryClient 创建长者档案客户端
func NewElderDirectoryClient(baseURL string, timeout time.Duration, cache store.KV, logger *zap.Logger) *ElderDirectoryClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")

	return &ElderDirectoryClient{
		httpClient: client,
		cache:      store.NewElderCache(cache, elderCacheTTL),
		logger:     logger,
	}
}

var _ ElderDirectory = (*ElderDirectoryClient)(nil)

// ElderExists GET /elders/{elder_id}：200 存在，404 不存在，其余视为错误
func (c *ElderDirectoryClient) ElderExists(ctx context.Context, elderID string) (bool, error) {
	known, err := c.cache.Known(ctx, elderID)
	if err != nil {
		c.logger.Warn("Elder cache lookup failed", zap.String("elder_id", elderID), zap.Error(err))
	}
	if known {
		return true, nil
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get("/elders/" + url.PathEscape(elderID))
	if err != nil {
		c.logger.Error("Elder directory call failed", zap.String("elder_id", elderID), zap.Error(err))
		return false, fmt.Errorf("failed to call elder directory: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		if err := c.cache.Remember(ctx, elderID); err != nil {
			c.logger.Warn("Failed to cache elder", zap.String("elder_id", elderID), zap.Error(err))
		}
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("elder directory returned status %d", resp.StatusCode())
	}
}
