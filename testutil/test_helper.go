/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference DESIGN.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"forecast-service/service/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// :memory: 库每个连接独立，限制为单连接
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	// 自动迁移所有模型
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	tables := []string{
		"sales_records",
		"model_artifacts",
		"training_runs",
		"prediction_records",
		"evaluation_records",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// Day 构造 UTC 日期
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// WeeklyValues 生成带周季节性和轻微趋势的日销量，周末上浮
func WeeklyValues(start time.Time, n int, base float64) []float64 {
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		day := start.AddDate(0, 0, i)
		v := base + 0.05*float64(i) + 3*math.Sin(2*math.Pi*float64(i)/7)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			v += 10
		}
		values[i] = math.Round(v)
	}
	return values
}

// BuildSeries 根据起始日期和数值构造连续日序列
func BuildSeries(location, item string, start time.Time, values []float64) models.Series {
	points := make([]models.SeriesPoint, 0, len(values))
	for i, v := range values {
		points = append(points, models.NewSeriesPoint(start.AddDate(0, 0, i), v))
	}
	return models.Series{
		Key:    models.NewSeriesKey(location, item),
		Points: points,
	}
}

// BuildSalesRecords 根据起始日期和数值构造销量记录
func BuildSalesRecords(location, item string, start time.Time, values []float64) []models.SalesRecord {
	records := make([]models.SalesRecord, 0, len(values))
	for i, v := range values {
		records = append(records, models.SalesRecord{
			Date:        start.AddDate(0, 0, i),
			LocationKey: location,
			ItemKey:     item,
			Quantity:    int(v),
			Source:      "test",
		})
	}
	return records
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// CreateSales 写入一段连续日销量
func (f *TestDataFactory) CreateSales(location, item string, start time.Time, values []float64) []models.SalesRecord {
	records := BuildSalesRecords(location, item, start, values)
	if err := f.DB.Create(&records).Error; err != nil {
		panic(fmt.Sprintf("failed to create test sales records: %v", err))
	}
	return records
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) *http.Request {
	var reqBody io.Reader

	if body != nil {
		switch b := body.(type) {
		case string:
			reqBody = bytes.NewBufferString(b)
		default:
			jsonBody, err := json.Marshal(body)
			if err != nil {
				panic(fmt.Sprintf("failed to marshal request body: %v", err))
			}
			reqBody = bytes.NewBuffer(jsonBody)
		}
	}

	req := httptest.NewRequest(method, url, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// DecodeJSON 解析响应体
func (h *HTTPTestHelper) DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	assert.NoError(t, err, "响应体应为合法JSON: %s", w.Body.String())
}
