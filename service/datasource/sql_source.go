/*
 * @module service/datasource/sql_source
 * @description PostgreSQL 销量表数据源，直接通过 database/sql 读取已有业务库
 * @architecture 数据源实现 - 连接池模式
 * @documentReference DESIGN.md
 * @stateFlow 打开连接池 -> Ping -> 区间查询 -> 扫描行 -> 返回记录
 * @rules 表结构为 (date, pincode, item, sales_quantity)；表名只允许标识符字符
 * @dependencies database/sql, github.com/lib/pq, github.com/spf13/cast
 * @refs source.go
 */

package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"forecast-service/service/models"

	_ "github.com/lib/pq" // PostgreSQL驱动
	"github.com/spf13/cast"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource 原始 SQL 数据源
type SQLSource struct {
	windowLimit
	db    *sql.DB
	table string
}

// OpenSQLSource 打开 PostgreSQL 连接池并创建数据源
func OpenSQLSource(ctx context.Context, dsn, table string) (*SQLSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("创建数据库连接失败: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: 数据库连接测试失败: %v", ErrDataUnavailable, err)
	}

	src, err := NewSQLSource(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return src, nil
}

// NewSQLSource 基于已有连接池创建数据源
func NewSQLSource(db *sql.DB, table string) (*SQLSource, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("非法的表名: %q", table)
	}
	return &SQLSource{db: db, table: table}, nil
}

// Type 数据源类型
func (s *SQLSource) Type() string {
	return "postgresql"
}

// FetchSales 查询区间内的销量记录
func (s *SQLSource) FetchSales(ctx context.Context, from, to time.Time) ([]models.SalesRecord, error) {
	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT date, pincode, item, sales_quantity FROM %s WHERE date >= $1 AND date <= $2 ORDER BY date",
		s.table)
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: 查询销量表失败: %v", ErrDataUnavailable, err)
	}
	defer rows.Close()

	var records []models.SalesRecord
	for rows.Next() {
		var (
			date     interface{}
			pincode  interface{}
			item     interface{}
			quantity interface{}
		)
		if err := rows.Scan(&date, &pincode, &item, &quantity); err != nil {
			return nil, fmt.Errorf("扫描销量记录失败: %w", err)
		}
		day, err := cast.ToTimeE(date)
		if err != nil {
			return nil, fmt.Errorf("解析日期失败: %w", err)
		}
		records = append(records, models.SalesRecord{
			Date:        models.TruncateDay(day),
			LocationKey: cast.ToString(pincode),
			ItemKey:     cast.ToString(item),
			Quantity:    cast.ToInt(quantity),
			Source:      "postgresql",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: 读取销量记录失败: %v", ErrDataUnavailable, err)
	}
	return records, nil
}

// Close 关闭连接池
func (s *SQLSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
