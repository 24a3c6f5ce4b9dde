/*
 * @module service/registry/registry_test
 * @description 模型仓库契约测试，文件/数据库/Redis 三种实现共用同一组用例
 * @architecture 测试层
 * @documentReference DESIGN.md
 * @stateFlow 训练模型 -> 保存 -> 加载/列出/破坏 -> 断言
 * @rules 三种实现对不存在、损坏、覆盖和清单的行为必须一致
 * @dependencies testing, stretchr/testify/suite, testutil
 */

package registry

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"forecast-service/service/forecast"
	"forecast-service/service/models"
	"forecast-service/testutil"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// fakeRedis 内存版 Redis，实现 RedisKV
type fakeRedis struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

// RegistryContractSuite 模型仓库契约测试套件
type RegistryContractSuite struct {
	suite.Suite
	newRegistry func() Registry
	corrupt     func(key ModelKey, data []byte)
	registry    Registry
	ctx         context.Context
}

func (s *RegistryContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = s.newRegistry()
}

func trainedModel(t require.TestingT, kind forecast.Kind, location, item string) forecast.Model {
	start := testutil.Day(2024, 1, 1)
	series := testutil.BuildSeries(location, item, start, testutil.WeeklyValues(start, 30, 40))
	m, err := forecast.New(kind, series.Key, forecast.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, m.Fit(series.Points))
	return m
}

func (s *RegistryContractSuite) TestSaveLoadRoundTrip() {
	for _, kind := range forecast.Kinds() {
		m := trainedModel(s.T(), kind, "110037", "Milk")
		s.Require().NoError(s.registry.Save(s.ctx, m))

		loaded, err := s.registry.Load(s.ctx, NewModelKey(kind, "110037", "Milk"))
		s.Require().NoError(err)
		s.Equal(kind, loaded.Kind())

		stamps := []time.Time{testutil.Day(2024, 1, 31), testutil.Day(2024, 2, 5)}
		want, err := m.Predict(stamps)
		s.Require().NoError(err)
		got, err := loaded.Predict(stamps)
		s.Require().NoError(err)
		s.Equal(want, got, "加载后的模型预测结果应一致")
	}
}

func (s *RegistryContractSuite) TestLoadMissing() {
	_, err := s.registry.Load(s.ctx, NewModelKey(forecast.KindSeasonalTrend, "999999", "NonExistentItem"))
	s.ErrorIs(err, ErrModelNotFound)
}

func (s *RegistryContractSuite) TestLoadCorrupted() {
	m := trainedModel(s.T(), forecast.KindSeasonalTrend, "400092", "Eggs")
	s.Require().NoError(s.registry.Save(s.ctx, m))

	key := KeyOf(m)
	s.corrupt(key, []byte("garbage"))
	_, err := s.registry.Load(s.ctx, key)
	s.ErrorIs(err, ErrModelCorrupted)
	s.NotErrorIs(err, ErrModelNotFound)
}

func (s *RegistryContractSuite) TestOverwrite() {
	first := trainedModel(s.T(), forecast.KindAutoRegressive, "400053", "Bread")
	s.Require().NoError(s.registry.Save(s.ctx, first))

	start := testutil.Day(2024, 1, 1)
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100
	}
	series := testutil.BuildSeries("400053", "Bread", start, values)
	second := forecast.NewAutoRegressive(series.Key, forecast.DefaultConfig())
	s.Require().NoError(second.Fit(series.Points))
	s.Require().NoError(s.registry.Save(s.ctx, second))

	loaded, err := s.registry.Load(s.ctx, KeyOf(second))
	s.Require().NoError(err)
	out, err := loaded.Predict([]time.Time{testutil.Day(2024, 1, 21)})
	s.Require().NoError(err)
	s.InDelta(100, out[0], 5)

	list, err := s.registry.List(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, list.Count)
}

func (s *RegistryContractSuite) TestList() {
	empty, err := s.registry.List(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, empty.Count)
	s.NotEmpty(empty.Status)
	s.NotNil(empty.Models)

	s.Require().NoError(s.registry.Save(s.ctx, trainedModel(s.T(), forecast.KindSeasonalTrend, "110037", "Milk")))
	s.Require().NoError(s.registry.Save(s.ctx, trainedModel(s.T(), forecast.KindAutoRegressive, "110037", "Milk")))
	s.Require().NoError(s.registry.Save(s.ctx, trainedModel(s.T(), forecast.KindSeasonalTrend, "400092", "Brown_Bread")))

	list, err := s.registry.List(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, list.Count)
	s.Len(list.Models, 3)

	var found bool
	for _, info := range list.Models {
		if info.ItemKey == "Brown_Bread" {
			found = true
			s.Equal("prophet", info.Kind)
			s.Equal("400092", info.LocationKey)
			s.Equal("prophet_model_400092_Brown_Bread.json", info.Filename)
		}
	}
	s.True(found, "商品键中的下划线应被保留")
}

func (s *RegistryContractSuite) TestInvalidKey() {
	_, err := s.registry.Load(s.ctx, NewModelKey(forecast.KindSeasonalTrend, "../etc", "passwd"))
	s.ErrorIs(err, ErrInvalidKey)

	m := trainedModel(s.T(), forecast.KindSeasonalTrend, "110037", "a/b")
	s.ErrorIs(s.registry.Save(s.ctx, m), ErrInvalidKey)
}

func TestFileRegistry(t *testing.T) {
	var dir string
	suite.Run(t, &RegistryContractSuite{
		newRegistry: func() Registry {
			dir = filepath.Join(t.TempDir(), "trained_models")
			return NewFileRegistry(dir, nil)
		},
		corrupt: func(key ModelKey, data []byte) {
			require.NoError(t, writeFile(filepath.Join(dir, key.Filename()), data))
		},
	})
}

func TestGormRegistry(t *testing.T) {
	var tdb *testutil.TestDB
	suite.Run(t, &RegistryContractSuite{
		newRegistry: func() Registry {
			tdb = testutil.NewTestDB()
			return NewGormRegistry(tdb.DB, nil)
		},
		corrupt: func(key ModelKey, data []byte) {
			require.NoError(t, tdb.DB.Model(&models.ModelArtifact{}).
				Where("filename = ?", key.Filename()).
				Update("payload", data).Error)
		},
	})
}

func TestRedisRegistry(t *testing.T) {
	var fake *fakeRedis
	suite.Run(t, &RegistryContractSuite{
		newRegistry: func() Registry {
			fake = newFakeRedis()
			return NewRedisRegistry(fake, "forecast:model:", nil)
		},
		corrupt: func(key ModelKey, data []byte) {
			fake.data["forecast:model:"+key.Filename()] = data
		},
	})
}

// repeatingScanRedis 分两页返回，第二页重复第一页的键
type repeatingScanRedis struct {
	*fakeRedis
}

func (f repeatingScanRedis) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	keys, _, err := f.fakeRedis.Scan(ctx, cursor, match, count).Result()
	next := uint64(0)
	if cursor == 0 {
		next = 1
	}
	return redis.NewScanCmdResult(keys, next, err)
}

func TestRedisRegistry_ListDeduplicatesScan(t *testing.T) {
	ctx := context.Background()
	reg := NewRedisRegistry(repeatingScanRedis{newFakeRedis()}, "forecast:model:", nil)
	require.NoError(t, reg.Save(ctx, trainedModel(t, forecast.KindSeasonalTrend, "110037", "Milk")))
	require.NoError(t, reg.Save(ctx, trainedModel(t, forecast.KindAutoRegressive, "400092", "Eggs")))

	listed, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, listed.Count)
	assert.Len(t, listed.Models, 2)
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name string
		want ModelKey
		ok   bool
	}{
		{"prophet_model_110037_Milk.json", ModelKey{forecast.KindSeasonalTrend, "110037", "Milk"}, true},
		{"arima_model_400092_Eggs.json", ModelKey{forecast.KindAutoRegressive, "400092", "Eggs"}, true},
		{"prophet_model_400092_Brown_Bread.json", ModelKey{forecast.KindSeasonalTrend, "400092", "Brown_Bread"}, true},
		{"prophet_model_400092_Milk.joblib", ModelKey{}, false},
		{"lstm_model_400092_Milk.json", ModelKey{}, false},
		{"prophet_400092_Milk.json", ModelKey{}, false},
		{"prophet_model_400092.json", ModelKey{}, false},
		{"_model_400092_Milk.json", ModelKey{}, false},
		{"README.md", ModelKey{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFilename(tt.name)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
				assert.Equal(t, tt.name, got.Filename())
			}
		})
	}
}

func TestModelKey_Validate(t *testing.T) {
	assert.NoError(t, NewModelKey(forecast.KindSeasonalTrend, " 110037 ", "Milk").Validate())
	assert.ErrorIs(t, NewModelKey(forecast.KindSeasonalTrend, "", "Milk").Validate(), ErrInvalidKey)
	assert.ErrorIs(t, NewModelKey(forecast.KindSeasonalTrend, "110_037", "Milk").Validate(), ErrInvalidKey)
	assert.ErrorIs(t, NewModelKey(forecast.KindSeasonalTrend, "110037", `a\b`).Validate(), ErrInvalidKey)
	assert.ErrorIs(t, NewModelKey(forecast.Kind("lstm"), "110037", "Milk").Validate(), ErrInvalidKey)
	assert.ErrorIs(t, NewModelKey("", "110037", "Milk").Validate(), ErrInvalidKey)
}

func TestFileRegistry_ListMissingDirectory(t *testing.T) {
	reg := NewFileRegistry(filepath.Join(t.TempDir(), "does-not-exist"), nil)
	result, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.Empty(t, result.Models)
	assert.Contains(t, result.Status, "不存在")
}

func TestFileRegistry_ListSkipsUnknownFiles(t *testing.T) {
	dir := t.TempDir()
	reg := NewFileRegistry(dir, nil)
	require.NoError(t, writeFile(filepath.Join(dir, "notes.txt"), []byte("x")))
	require.NoError(t, writeFile(filepath.Join(dir, "lstm_model_1_a.json"), []byte("x")))
	require.NoError(t, reg.Save(context.Background(), trainedModel(t, forecast.KindSeasonalTrend, "110037", "Milk")))

	result, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "prophet_model_110037_Milk.json", result.Models[0].Filename)
}

func TestNew(t *testing.T) {
	reg, err := New(configFor("file", t.TempDir()), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "file", reg.Type())

	_, err = New(configFor("gorm", ""), nil, nil, nil)
	assert.Error(t, err)

	reg, err = New(configFor("redis", ""), nil, newFakeRedis(), nil)
	require.NoError(t, err)
	assert.Equal(t, "redis", reg.Type())

	_, err = New(configFor("s3", ""), nil, nil, nil)
	assert.Error(t, err)
}
