package distributed_lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLockClient 内存版的锁命令实现，脚本按释放/续期两种语义模拟
type fakeLockClient struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	failing bool
}

func newFakeLockClient() *fakeLockClient {
	return &fakeLockClient{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeLockClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return redis.NewBoolResult(false, errors.New("connection refused"))
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLockClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return redis.NewCmdResult(nil, errors.New("connection refused"))
	}
	if f.values[keys[0]] != args[0].(string) {
		return redis.NewCmdResult(int64(0), nil)
	}
	if script == unlockScript {
		delete(f.values, keys[0])
	} else {
		f.ttls[keys[0]] = time.Duration(args[1].(int)) * time.Second
	}
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeLockClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisLock(t *testing.T) {
	ctx := context.Background()
	client := newFakeLockClient()
	lock := NewRedisLock(client, "", nil)
	other := NewRedisLock(client, "", nil)
	other.instanceID = "other:1"

	ok, err := lock.TryLock(ctx, "train", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, lock.InstanceID(), client.values[DefaultKeyPrefix+"train"])

	ok, err = other.TryLock(ctx, "train", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "锁被持有时不能重复获取")

	locked, err := lock.IsLocked(ctx, "train")
	require.NoError(t, err)
	assert.True(t, locked)

	// 非持有者释放不生效，续期报错
	require.NoError(t, other.Unlock(ctx, "train"))
	assert.Error(t, other.Refresh(ctx, "train", time.Minute))

	require.NoError(t, lock.Refresh(ctx, "train", 2*time.Minute))
	assert.Equal(t, 2*time.Minute, client.ttls[DefaultKeyPrefix+"train"])

	require.NoError(t, lock.Unlock(ctx, "train"))
	locked, err = lock.IsLocked(ctx, "train")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestRedisLock_ClientErrors(t *testing.T) {
	client := newFakeLockClient()
	client.failing = true
	lock := NewRedisLock(client, "custom:", nil)

	_, err := lock.TryLock(context.Background(), "job", time.Minute)
	assert.Error(t, err)
	assert.Error(t, lock.Unlock(context.Background(), "job"))
}

func TestLockExecutor(t *testing.T) {
	ctx := context.Background()
	client := newFakeLockClient()
	executor := NewLockExecutor(NewRedisLock(client, "", nil), nil)

	calls := 0
	ran, err := executor.ExecuteWithLock(ctx, "predict", time.Minute, func() error {
		calls++
		// 执行期间锁被占用
		assert.Contains(t, client.values, DefaultKeyPrefix+"predict")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, calls)
	assert.NotContains(t, client.values, DefaultKeyPrefix+"predict", "执行完成后释放锁")

	// 其他实例持有锁时跳过
	client.values[DefaultKeyPrefix+"predict"] = "other:1"
	ran, err = executor.ExecuteWithLock(ctx, "predict", time.Minute, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, calls)

	// 函数错误原样返回
	ran, err = executor.ExecuteWithLockAndRefresh(ctx, "train", time.Minute, 10*time.Millisecond, func() error {
		time.Sleep(30 * time.Millisecond)
		return errors.New("训练失败")
	})
	assert.True(t, ran)
	assert.EqualError(t, err, "训练失败")
	assert.NotContains(t, client.values, DefaultKeyPrefix+"train")
}
