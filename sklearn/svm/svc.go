// Package svm provides a kernelized C-Support Vector Classifier for binary
// classification, compatible with scikit-learn's SVC for the rbf and linear
// kernels.
package svm

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/adpipe/core/model"
	"github.com/YuminosukeSato/adpipe/metrics"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SVC は二値分類用の C-SVC
//
// 学習は SMO で双対問題を解き、サポートベクトル (α > 0) のみを保持する。
// 決定関数は f(x) = Σ DualCoef_k K(SV_k, x) + Intercept で、f(x) > 0 のとき
// Classes()[1] を予測する。全フィールドが公開されているので gob でそのまま保存できる。
type SVC struct {
	State *model.StateManager

	// Hyperparameters
	C           float64
	Kernel      string
	GammaMode   string
	GammaValue  float64
	Tol         float64
	MaxIter     int
	RandomState int64
	NJobs       int

	// Learned parameters
	SupportVectors [][]float64
	SupportIndex   []int
	DualCoef       []float64 // α_k y_k
	Intercept      float64   // −ρ
	Gamma          float64
	ClassLabels    []float64
	NIter          int
}

// NewSVC creates a new SVC with scikit-learn defaults
// (C=1, kernel="rbf", gamma="scale", tol=1e-3, max_iter=-1).
//
// Example:
//
//	clf := svm.NewSVC(svm.WithC(1), svm.WithKernel("rbf"), svm.WithGamma("scale"), svm.WithRandomState(42))
//	if err := clf.Fit(XTrain, yTrain); err != nil { ... }
//	acc, err := clf.Score(XTest, yTest)
func NewSVC(opts ...Option) *SVC {
	s := &SVC{
		State:       model.NewStateManager(),
		C:           1.0,
		Kernel:      KernelRBF,
		GammaMode:   GammaScale,
		Tol:         1e-3,
		MaxIter:     -1,
		RandomState: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SVC) validate() error {
	if !(s.C > 0) {
		return errors.NewValidationError("C", "must be strictly positive", s.C)
	}
	if s.Kernel != KernelRBF && s.Kernel != KernelLinear {
		return errors.NewValidationError("kernel", "must be rbf or linear", s.Kernel)
	}
	if s.GammaValue == 0 && s.GammaMode != GammaScale && s.GammaMode != GammaAuto {
		return errors.NewValidationError("gamma", "must be scale, auto or a positive value", s.GammaMode)
	}
	if s.GammaValue < 0 {
		return errors.NewValidationError("gamma", "must be positive", s.GammaValue)
	}
	if !(s.Tol > 0) {
		return errors.NewValidationError("tol", "must be strictly positive", s.Tol)
	}
	return nil
}

// Fit trains the classifier. y must be a column vector with exactly two
// distinct labels.
func (s *SVC) Fit(X, y mat.Matrix) error {
	if err := s.validate(); err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("SVC.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return errors.NewDimensionError("SVC.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("SVC.Fit", 1, yCols, 1)
	}
	if err := errors.CheckMatrix("SVC.Fit", X, nSamples, nFeatures, 0); err != nil {
		return err
	}

	labels := mat.Col(nil, 0, y)
	classes := uniqueSorted(labels)
	if len(classes) != 2 {
		return errors.NewValueError("SVC.Fit",
			fmt.Sprintf("binary classification requires exactly 2 classes, got %d", len(classes)))
	}

	signs := make([]float64, nSamples)
	for i, v := range labels {
		signs[i] = -1
		if v == classes[1] {
			signs[i] = 1
		}
	}

	Xr := rows(X)
	s.Gamma = s.resolveGamma(Xr)
	K := kernelMatrix(Xr, s.kernel(), s.NJobs)

	maxIter := s.MaxIter
	if maxIter < 0 {
		maxIter = 100 * nSamples
		if maxIter < 10_000_000 {
			maxIter = 10_000_000
		}
	}

	res := newSMO(K, signs, s.C, s.Tol, maxIter).solve()
	if !res.converged {
		errors.Warn(errors.NewConvergenceWarning("SVC", res.iters,
			"Solver terminated early (max_iter reached). Consider pre-processing your data."))
	}

	s.SupportVectors = nil
	s.SupportIndex = nil
	s.DualCoef = nil
	for i, a := range res.alpha {
		if a > 0 {
			s.SupportIndex = append(s.SupportIndex, i)
			s.SupportVectors = append(s.SupportVectors, Xr[i])
			s.DualCoef = append(s.DualCoef, a*signs[i])
		}
	}
	s.Intercept = -res.rho
	s.ClassLabels = classes
	s.NIter = res.iters

	if s.State == nil {
		s.State = model.NewStateManager()
	}
	s.State.SetDimensions(nFeatures, nSamples)
	s.State.SetFitted()
	return nil
}

func (s *SVC) resolveGamma(X [][]float64) float64 {
	if s.GammaValue > 0 {
		return s.GammaValue
	}
	if s.GammaMode == GammaAuto {
		return 1.0 / float64(len(X[0]))
	}
	return scaleGamma(X)
}

func (s *SVC) kernel() kernelFunc {
	if s.Kernel == KernelLinear {
		return linearKernel
	}
	return rbfKernel(s.Gamma)
}

// DecisionFunction returns f(x) for every row of X
func (s *SVC) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if s.State == nil {
		return nil, errors.NewNotFittedError("SVC", "DecisionFunction")
	}
	if err := s.State.RequireFitted("SVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.State.RequireFeatures("SVC.DecisionFunction", c); err != nil {
		return nil, err
	}

	k := s.kernel()
	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		f := s.Intercept
		for t, sv := range s.SupportVectors {
			f += s.DualCoef[t] * k(sv, row)
		}
		out[i] = f
	}
	return out, nil
}

// Predict returns the predicted class label of every row as a column vector
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	pred := make([]float64, len(dec))
	for i, f := range dec {
		pred[i] = s.ClassLabels[0]
		if f > 0 {
			pred[i] = s.ClassLabels[1]
		}
	}
	return mat.NewDense(len(pred), 1, pred), nil
}

// Score returns the mean accuracy on X and y
func (s *SVC) Score(X, y mat.Matrix) (float64, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Classes returns the sorted class labels seen during Fit
func (s *SVC) Classes() []float64 {
	return append([]float64(nil), s.ClassLabels...)
}

// NSupport returns the number of support vectors
func (s *SVC) NSupport() int {
	return len(s.SupportVectors)
}

// GetParams returns the hyperparameters
func (s *SVC) GetParams() map[string]interface{} {
	gamma := interface{}(s.GammaMode)
	if s.GammaValue > 0 {
		gamma = s.GammaValue
	}
	return map[string]interface{}{
		"C":            s.C,
		"kernel":       s.Kernel,
		"gamma":        gamma,
		"tol":          s.Tol,
		"max_iter":     s.MaxIter,
		"random_state": s.RandomState,
	}
}

// String returns a scikit-learn style representation
func (s *SVC) String() string {
	return fmt.Sprintf("SVC(C=%g, kernel=%s, gamma=%v, random_state=%d)",
		s.C, s.Kernel, s.GetParams()["gamma"], s.RandomState)
}

func uniqueSorted(v []float64) []float64 {
	seen := make(map[float64]struct{})
	var out []float64
	for _, x := range v {
		if _, ok := seen[x]; !ok {
			seen[x] = struct{}{}
			out = append(out, x)
		}
	}
	sort.Float64s(out)
	return out
}

var _ model.Classifier = (*SVC)(nil)
