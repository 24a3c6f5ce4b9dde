/*
 * @module service/forecast/linalg
 * @description 带对角惩罚的最小二乘求解
 * @architecture 数值计算工具
 * @documentReference DESIGN.md
 * @stateFlow 设计矩阵 + 目标 + 惩罚 -> 正规方程 -> Cholesky 分解 -> 系数
 * @rules 惩罚项全部为正，保证正规方程正定
 * @dependencies gonum.org/v1/gonum/mat
 * @refs seasonal_trend.go, autoregressive.go
 */

package forecast

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ridgeSolve 求解 min ||A x - y||² + Σ penalty_i x_i²
func ridgeSolve(a *mat.Dense, y []float64, penalty []float64) ([]float64, error) {
	r, c := a.Dims()
	if len(y) != r || len(penalty) != c {
		return nil, fmt.Errorf("维度不匹配: A=%dx%d, y=%d, penalty=%d", r, c, len(y), len(penalty))
	}

	var ata mat.SymDense
	ata.SymOuterK(1, a.T())
	for i, p := range penalty {
		ata.SetSym(i, i, ata.At(i, i)+p)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&ata); !ok {
		return nil, fmt.Errorf("正规方程非正定")
	}

	aty := mat.NewVecDense(c, nil)
	aty.MulVec(a.T(), mat.NewVecDense(r, append([]float64(nil), y...)))

	var x mat.VecDense
	if err := chol.SolveVecTo(&x, aty); err != nil {
		return nil, fmt.Errorf("求解失败: %w", err)
	}

	out := make([]float64, c)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}

// scaleRows 返回每行乘以 w[i] 后的新矩阵
func scaleRows(a *mat.Dense, w []float64) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, a.At(i, j)*w[i])
		}
	}
	return out
}

// rowDot 矩阵第 i 行与系数向量的内积
func rowDot(a *mat.Dense, i int, coef []float64) float64 {
	sum := 0.0
	for j, c := range coef {
		sum += a.At(i, j) * c
	}
	return sum
}
