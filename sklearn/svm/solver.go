package svm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// 二次係数が非正のときに使う下限
const tau = 1e-12

// smoResult は双対問題の解
type smoResult struct {
	alpha     []float64
	rho       float64
	iters     int
	converged bool
}

// smo は C-SVC の双対問題
//
//	min 1/2 αᵀQα − eᵀα   s.t. yᵀα = 0, 0 ≤ α ≤ C,  Q_ij = y_i y_j K_ij
//
// を SMO (WSS3 の二次情報による作業集合選択) で解く。
// 同値のときは添字の小さい方を選ぶので、同じ入力に対して常に同じ解を返す。
type smo struct {
	K       *mat.SymDense
	y       []float64
	C       float64
	eps     float64
	maxIter int

	alpha []float64
	G     []float64
	QD    []float64
}

func newSMO(K *mat.SymDense, y []float64, C, eps float64, maxIter int) *smo {
	n := len(y)
	s := &smo{
		K:       K,
		y:       y,
		C:       C,
		eps:     eps,
		maxIter: maxIter,
		alpha:   make([]float64, n),
		G:       make([]float64, n),
		QD:      make([]float64, n),
	}
	for i := 0; i < n; i++ {
		// α = 0 なので G = Qα − e = −e
		s.G[i] = -1
		s.QD[i] = K.At(i, i)
	}
	return s
}

func (s *smo) q(i, j int) float64 {
	return s.y[i] * s.y[j] * s.K.At(i, j)
}

func (s *smo) isUpper(i int) bool { return s.alpha[i] >= s.C }
func (s *smo) isLower(i int) bool { return s.alpha[i] <= 0 }

// selectWorkingSet は最大違反対 (i, j) を返す。最適なら ok=false
func (s *smo) selectWorkingSet() (i, j int, ok bool) {
	n := len(s.y)
	gmax := math.Inf(-1)
	gmax2 := math.Inf(-1)
	i, j = -1, -1

	for t := 0; t < n; t++ {
		if s.y[t] == 1 {
			if !s.isUpper(t) && -s.G[t] > gmax {
				gmax = -s.G[t]
				i = t
			}
		} else {
			if !s.isLower(t) && s.G[t] > gmax {
				gmax = s.G[t]
				i = t
			}
		}
	}
	if i == -1 {
		return -1, -1, false
	}

	objDiffMin := math.Inf(1)
	for t := 0; t < n; t++ {
		var gradDiff, quad float64
		if s.y[t] == 1 {
			if s.isLower(t) {
				continue
			}
			gradDiff = gmax + s.G[t]
			if s.G[t] > gmax2 {
				gmax2 = s.G[t]
			}
			quad = s.QD[i] + s.QD[t] - 2*s.y[i]*s.q(i, t)
		} else {
			if s.isUpper(t) {
				continue
			}
			gradDiff = gmax - s.G[t]
			if -s.G[t] > gmax2 {
				gmax2 = -s.G[t]
			}
			quad = s.QD[i] + s.QD[t] + 2*s.y[i]*s.q(i, t)
		}
		if gradDiff <= 0 {
			continue
		}
		if quad <= 0 {
			quad = tau
		}
		if objDiff := -(gradDiff * gradDiff) / quad; objDiff < objDiffMin {
			objDiffMin = objDiff
			j = t
		}
	}

	if gmax+gmax2 < s.eps || j == -1 {
		return -1, -1, false
	}
	return i, j, true
}

// update は (i, j) の二変数部分問題を解析的に解き、勾配を更新する
func (s *smo) update(i, j int) {
	C := s.C
	oldI, oldJ := s.alpha[i], s.alpha[j]
	qij := s.q(i, j)

	if s.y[i] != s.y[j] {
		quad := s.QD[i] + s.QD[j] + 2*qij
		if quad <= 0 {
			quad = tau
		}
		delta := (-s.G[i] - s.G[j]) / quad
		diff := s.alpha[i] - s.alpha[j]
		s.alpha[i] += delta
		s.alpha[j] += delta

		if diff > 0 {
			if s.alpha[j] < 0 {
				s.alpha[j] = 0
				s.alpha[i] = diff
			}
		} else {
			if s.alpha[i] < 0 {
				s.alpha[i] = 0
				s.alpha[j] = -diff
			}
		}
		if diff > 0 {
			if s.alpha[i] > C {
				s.alpha[i] = C
				s.alpha[j] = C - diff
			}
		} else {
			if s.alpha[j] > C {
				s.alpha[j] = C
				s.alpha[i] = C + diff
			}
		}
	} else {
		quad := s.QD[i] + s.QD[j] - 2*qij
		if quad <= 0 {
			quad = tau
		}
		delta := (s.G[i] - s.G[j]) / quad
		sum := s.alpha[i] + s.alpha[j]
		s.alpha[i] -= delta
		s.alpha[j] += delta

		if sum > C {
			if s.alpha[i] > C {
				s.alpha[i] = C
				s.alpha[j] = sum - C
			}
		} else {
			if s.alpha[j] < 0 {
				s.alpha[j] = 0
				s.alpha[i] = sum
			}
		}
		if sum > C {
			if s.alpha[j] > C {
				s.alpha[j] = C
				s.alpha[i] = sum - C
			}
		} else {
			if s.alpha[i] < 0 {
				s.alpha[i] = 0
				s.alpha[j] = sum
			}
		}
	}

	dI := s.alpha[i] - oldI
	dJ := s.alpha[j] - oldJ
	for t := range s.G {
		s.G[t] += s.q(i, t)*dI + s.q(j, t)*dJ
	}
}

// rho は自由サポートベクトル上の y_i G_i の平均、無ければ上下界の中点
func (s *smo) rho() float64 {
	ub := math.Inf(1)
	lb := math.Inf(-1)
	nFree := 0
	sumFree := 0.0
	for i := range s.y {
		yG := s.y[i] * s.G[i]
		switch {
		case s.isUpper(i):
			if s.y[i] == -1 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case s.isLower(i):
			if s.y[i] == 1 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			nFree++
			sumFree += yG
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}

func (s *smo) solve() smoResult {
	iter := 0
	converged := false
	for iter < s.maxIter {
		i, j, ok := s.selectWorkingSet()
		if !ok {
			converged = true
			break
		}
		s.update(i, j)
		iter++
	}
	return smoResult{alpha: s.alpha, rho: s.rho(), iters: iter, converged: converged}
}
