package storage_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/storage"
)

func newTestRedis(t *testing.T) *storage.Redis {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR 未设置，跳过Redis集成测试")
	}

	r, err := storage.NewRedisAdapter(&config.RedisConfig{
		Address:             addr,
		DialTimeoutSeconds:  5,
		ReadTimeoutSeconds:  3,
		WriteTimeoutSeconds: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// TestCheckAndAddCVFileMD5 首次登记返回false，重复登记返回true
func TestCheckAndAddCVFileMD5(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	md5Hex := fmt.Sprintf("%032x", time.Now().UnixNano())

	exists, err := r.CheckAndAddCVFileMD5(ctx, md5Hex)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = r.CheckAndAddCVFileMD5(ctx, md5Hex)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, r.RemoveCVFileMD5(ctx, md5Hex))
}

// TestClaimInterviewLink SETNX守卫下同一投递只能申领一次
func TestClaimInterviewLink(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	appID := fmt.Sprintf("it-claim-%d", time.Now().UnixNano())

	claimed, err := r.ClaimInterviewLink(ctx, appID, "link-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = r.ClaimInterviewLink(ctx, appID, "link-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	// 已发放的链接保持首次的值
	link, err := r.GetClaimedInterviewLink(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, "link-1", link)
}

// TestCompareLock 持有者令牌不匹配时不能释放锁
func TestCompareLock(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	appID := fmt.Sprintf("it-lock-%d", time.Now().UnixNano())

	token, err := r.AcquireCompareLock(ctx, appID, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// 第二个获取者拿不到锁
	token2, err := r.AcquireCompareLock(ctx, appID, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, token2)

	released, err := r.ReleaseCompareLock(ctx, appID, "wrong-token")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = r.ReleaseCompareLock(ctx, appID, token)
	require.NoError(t, err)
	assert.True(t, released)
}

// TestJobDescriptionCache JD文本缓存的读写
func TestJobDescriptionCache(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	jobID := fmt.Sprintf("it-job-%d", time.Now().UnixNano())

	_, err := r.GetJobDescription(ctx, jobID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, r.CacheJobDescription(ctx, jobID, "Python backend developer"))

	text, err := r.GetJobDescription(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "Python backend developer", text)
}
