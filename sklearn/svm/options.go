package svm

// Option is a functional option for SVC
type Option func(*SVC)

// WithC sets the regularization parameter. Must be strictly positive.
func WithC(c float64) Option {
	return func(s *SVC) {
		s.C = c
	}
}

// WithKernel sets the kernel: "rbf" or "linear"
func WithKernel(kernel string) Option {
	return func(s *SVC) {
		s.Kernel = kernel
	}
}

// WithGamma sets the RBF gamma mode: "scale" or "auto"
func WithGamma(gamma string) Option {
	return func(s *SVC) {
		s.GammaMode = gamma
		s.GammaValue = 0
	}
}

// WithGammaValue sets an explicit RBF gamma, overriding the gamma mode
func WithGammaValue(gamma float64) Option {
	return func(s *SVC) {
		s.GammaValue = gamma
	}
}

// WithTol sets the KKT violation tolerance used as the stopping criterion
func WithTol(tol float64) Option {
	return func(s *SVC) {
		s.Tol = tol
	}
}

// WithMaxIter sets the maximum number of SMO iterations. -1 means
// max(10_000_000, 100*n_samples).
func WithMaxIter(maxIter int) Option {
	return func(s *SVC) {
		s.MaxIter = maxIter
	}
}

// WithRandomState records the random seed. The SMO solver itself is
// deterministic, so the seed only travels with the persisted model.
func WithRandomState(seed int64) Option {
	return func(s *SVC) {
		s.RandomState = seed
	}
}

// WithNJobs sets the number of goroutines used to build the kernel matrix.
// 0 means one per CPU core.
func WithNJobs(n int) Option {
	return func(s *SVC) {
		s.NJobs = n
	}
}
