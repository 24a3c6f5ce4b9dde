/*
 * @module service/datasource/simulated_source
 * @description 模拟销量数据源，生成演示用的日销量数据
 * @architecture 数据源实现 - 无外部依赖
 * @documentReference DESIGN.md
 * @stateFlow 日期区间 -> 逐日逐组合生成销量 -> 返回记录
 * @rules 同一日期的数据由日期决定随机种子，重复查询结果一致
 * @dependencies math/rand
 * @refs source.go
 */

package datasource

import (
	"context"
	"math/rand"
	"time"

	"forecast-service/service/models"
)

// 模拟数据覆盖的区域和商品
var (
	SimulatedPincodes = []string{"110037", "400092", "400053"}
	SimulatedItems    = []string{"Milk", "Eggs", "Bread", "Apples", "Bananas"}
)

// SimulatedSource 模拟数据源
type SimulatedSource struct {
	windowLimit
	seed int64
}

// NewSimulatedSource 创建模拟数据源
func NewSimulatedSource(seed int64) *SimulatedSource {
	return &SimulatedSource{seed: seed}
}

// Type 数据源类型
func (s *SimulatedSource) Type() string {
	return "simulated"
}

// FetchSales 生成区间内每天、每个区域、每个商品一条记录
func (s *SimulatedSource) FetchSales(ctx context.Context, from, to time.Time) ([]models.SalesRecord, error) {
	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return nil, err
	}

	days := int(to.Sub(from).Hours()/24) + 1
	records := make([]models.SalesRecord, 0, days*len(SimulatedPincodes)*len(SimulatedItems))
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng := rand.New(rand.NewSource(s.seed + day.Unix()/86400))
		weekend := day.Weekday() == time.Saturday || day.Weekday() == time.Sunday

		for _, pincode := range SimulatedPincodes {
			for _, item := range SimulatedItems {
				sales := randInt(rng, 10, 60)
				if weekend {
					sales = randInt(rng, 20, 80)
				}
				// 400092 的牛奶需求更高
				if item == "Milk" && pincode == "400092" {
					sales += randInt(rng, 10, 30)
				}
				// 110037 的鸡蛋需求更低
				if item == "Eggs" && pincode == "110037" {
					sales = max(5, sales-randInt(rng, 5, 20))
				}
				records = append(records, models.SalesRecord{
					Date:        day,
					LocationKey: pincode,
					ItemKey:     item,
					Quantity:    sales,
					Source:      "simulated",
				})
			}
		}
	}
	return records, nil
}

// randInt 返回 [lo, hi] 闭区间内的随机整数
func randInt(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}
