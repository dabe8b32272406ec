package mixed

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"gocompare/adapters/stats/dist"
	"gocompare/domain/analysis"
	"gocompare/domain/core"
)

// Options control a fit.
type Options struct {
	RandomSlope   bool
	MaxIterations int
}

// Result is a fitted model. P is the task-level p-value (minimum over the
// interaction coefficients).
type Result struct {
	Diagnostics analysis.ModelDiagnostics
	P           float64
	Statistic   float64
	Warnings    []string
}

// evaluation is the REML criterion at one θ with everything needed to
// report the fit.
type evaluation struct {
	objective float64
	beta      *mat.VecDense
	a         *mat.Cholesky
	sigma2    float64
}

var errSingular = errors.New("singular matrix")

// relativeCovariance returns Ψ = LLᵀ for the lower-triangular factor
// parameterised by θ (log diagonal, free off-diagonal).
func relativeCovariance(theta []float64) *mat.SymDense {
	if len(theta) == 1 {
		v := math.Exp(2 * theta[0])
		return mat.NewSymDense(1, []float64{v})
	}
	l00, l10, l11 := math.Exp(theta[0]), theta[1], math.Exp(theta[2])
	return mat.NewSymDense(2, []float64{
		l00 * l00, l00 * l10,
		l00 * l10, l10*l10 + l11*l11,
	})
}

func (d *design) evaluate(theta []float64) (*evaluation, error) {
	p := d.p()
	psi := relativeCovariance(theta)
	a := mat.NewDense(p, p, nil)
	b := mat.NewVecDense(p, nil)
	var c, logDetV float64

	for _, blk := range d.blocks {
		ni, _ := blk.x.Dims()
		var zpsi, zpz mat.Dense
		zpsi.Mul(blk.z, psi)
		zpz.Mul(&zpsi, blk.z.T())
		v := mat.NewSymDense(ni, nil)
		for i := 0; i < ni; i++ {
			for j := i; j < ni; j++ {
				e := zpz.At(i, j)
				if i == j {
					e++
				}
				v.SetSym(i, j, e)
			}
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(v); !ok {
			return nil, errSingular
		}
		logDetV += chol.LogDet()

		var vx mat.Dense
		if err := chol.SolveTo(&vx, blk.x); err != nil {
			return nil, err
		}
		var vy mat.VecDense
		if err := chol.SolveVecTo(&vy, blk.y); err != nil {
			return nil, err
		}
		var xvx mat.Dense
		xvx.Mul(blk.x.T(), &vx)
		a.Add(a, &xvx)
		var xvy mat.VecDense
		xvy.MulVec(blk.x.T(), &vy)
		b.AddVec(b, &xvy)
		c += mat.Dot(blk.y, &vy)
	}

	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sym.SetSym(i, j, (a.At(i, j)+a.At(j, i))/2)
		}
	}
	var achol mat.Cholesky
	if ok := achol.Factorize(sym); !ok {
		return nil, errSingular
	}
	var beta mat.VecDense
	if err := achol.SolveVecTo(&beta, b); err != nil {
		return nil, err
	}

	dfResid := float64(d.n - p)
	rss := c - mat.Dot(b, &beta)
	sigma2 := rss / dfResid
	if !(sigma2 > 0) || math.IsInf(sigma2, 0) {
		return nil, core.NewNonConvergenceError("non-positive residual variance")
	}
	obj := dfResid*(math.Log(2*math.Pi*sigma2)+1) + logDetV + achol.LogDet()
	if math.IsNaN(obj) || math.IsInf(obj, 0) {
		return nil, core.NewNonConvergenceError("non-finite restricted likelihood")
	}
	return &evaluation{objective: obj, beta: &beta, a: &achol, sigma2: sigma2}, nil
}

// contextRecorder aborts the optimiser once ctx is done.
type contextRecorder struct {
	ctx context.Context
}

func (r contextRecorder) Init() error { return r.ctx.Err() }

func (r contextRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}

// startGrid lists the deterministic starting points tried before the
// simplex search.
func startGrid(randomSlope bool) [][]float64 {
	steps := []float64{-3, -1.5, -0.5, 0, 0.5, 1.5}
	var grid [][]float64
	if !randomSlope {
		for _, s := range steps {
			grid = append(grid, []float64{s})
		}
		return grid
	}
	for _, s0 := range steps {
		for _, s2 := range []float64{-3, -1, 0} {
			grid = append(grid, []float64{s0, 0, s2})
		}
	}
	return grid
}

func convergedStatus(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge,
		optimize.FunctionThreshold, optimize.StepConvergence, optimize.GradientThreshold:
		return true
	}
	return false
}

// Fit estimates the model by REML. Any numerical failure, optimiser failure
// or cancellation of ctx is reported as ErrModelNonConvergence.
func Fit(ctx context.Context, data Data, opts Options) (*Result, error) {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 2000
	}
	des, err := newDesign(data, opts.RandomSlope)
	if err != nil {
		return nil, err
	}
	p := des.p()
	if des.n <= p {
		return nil, core.NewInsufficientDataError("%d observations for %d fixed effects", des.n, p)
	}
	var interactions []int
	for j, t := range des.terms {
		if t.interaction {
			interactions = append(interactions, j)
		}
	}
	if len(interactions) == 0 {
		return nil, core.NewInsufficientDataError("no estimable time by group interaction")
	}

	objective := func(theta []float64) float64 {
		ev, err := des.evaluate(theta)
		if err != nil {
			return math.Inf(1)
		}
		return ev.objective
	}

	var start []float64
	best := math.Inf(1)
	for _, x0 := range startGrid(opts.RandomSlope) {
		if err := ctx.Err(); err != nil {
			return nil, core.NewNonConvergenceError("fit cancelled: %v", err)
		}
		if f := objective(x0); f < best {
			best, start = f, x0
		}
	}
	if start == nil {
		return nil, core.NewNonConvergenceError("restricted likelihood is not finite at any starting value")
	}

	settings := &optimize.Settings{
		MajorIterations: opts.MaxIterations,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-9, Relative: 1e-12, Iterations: 60},
		Recorder:        contextRecorder{ctx: ctx},
	}
	res, err := optimize.Minimize(optimize.Problem{Func: objective}, start, settings, &optimize.NelderMead{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, core.NewNonConvergenceError("fit cancelled: %v", ctxErr)
	}
	if err != nil || res == nil {
		return nil, core.NewNonConvergenceError("optimiser failed: %v", err)
	}
	if !convergedStatus(res.Status) {
		return nil, core.NewNonConvergenceError("optimiser stopped with status %v", res.Status)
	}

	ev, err := des.evaluate(res.X)
	if err != nil {
		if errors.Is(err, errSingular) {
			return nil, core.NewNonConvergenceError("singular fixed-effects information")
		}
		return nil, err
	}
	return summarize(des, data, opts, ev, res.X, res.Stats.MajorIterations, interactions)
}

func summarize(des *design, data Data, opts Options, ev *evaluation, theta []float64, iterations int, interactions []int) (*Result, error) {
	p := des.p()
	var inv mat.SymDense
	if err := ev.a.InverseTo(&inv); err != nil {
		return nil, core.NewNonConvergenceError("singular fixed-effects information")
	}
	cov := mat.NewSymDense(p, nil)
	cov.ScaleSym(ev.sigma2, &inv)

	coefs := make([]analysis.Coefficient, p)
	var interactionNames []string
	minP, minZ := 1.0, 0.0
	for j, t := range des.terms {
		est := ev.beta.AtVec(j)
		se := math.Sqrt(cov.At(j, j))
		if !(se > 0) || math.IsInf(se, 0) {
			return nil, core.NewNonConvergenceError("non-positive variance for %s", t.name)
		}
		z := est / se
		pv := dist.ZTwoSided(z)
		coefs[j] = analysis.Coefficient{Term: t.name, Estimate: est, StdError: se, Z: z, PValue: pv, Interaction: t.interaction}
		if t.interaction {
			interactionNames = append(interactionNames, t.name)
			if pv < minP || (pv == minP && math.Abs(z) > math.Abs(minZ)) {
				minP, minZ = pv, z
			}
		}
	}

	wald, err := jointWald(ev.beta, cov, interactions)
	if err != nil {
		return nil, err
	}

	psi := relativeCovariance(theta)
	randomEffects := []float64{ev.sigma2 * psi.At(0, 0)}
	if opts.RandomSlope {
		randomEffects = append(randomEffects, ev.sigma2*psi.At(0, 1), ev.sigma2*psi.At(1, 1))
	}

	loglik := -ev.objective / 2
	k := float64(p + len(theta) + 1)
	diag := analysis.ModelDiagnostics{
		LogLikelihood:    loglik,
		AIC:              -2*loglik + 2*k,
		BIC:              -2*loglik + k*math.Log(float64(des.n)),
		Converged:        true,
		Iterations:       iterations,
		Estimation:       "REML",
		Observations:     des.n,
		Subjects:         des.subjects,
		RandomSlope:      opts.RandomSlope,
		ResidualVariance: ev.sigma2,
		RandomEffects:    randomEffects,
		Coefficients:     coefs,
		InteractionTerms: interactionNames,
		JointPMethod:     analysis.JointMinP,
		JointWaldChi2:    wald,
		JointWaldDF:      len(interactions),
		JointWaldP:       dist.ChiSquareUpper(wald, float64(len(interactions))),
	}

	res := &Result{Diagnostics: diag, P: dist.ClampP(minP), Statistic: minZ}
	for _, name := range des.dropped {
		res.Warnings = append(res.Warnings, "dropped inestimable term "+name)
	}
	return res, nil
}

// jointWald computes βᵢᵀ Cov(βᵢ)⁻¹ βᵢ over the given coefficient indices.
func jointWald(beta *mat.VecDense, cov *mat.SymDense, idx []int) (float64, error) {
	m := len(idx)
	sub := mat.NewSymDense(m, nil)
	b := mat.NewVecDense(m, nil)
	for i, r := range idx {
		b.SetVec(i, beta.AtVec(r))
		for j := i; j < m; j++ {
			sub.SetSym(i, j, cov.At(r, idx[j]))
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sub); !ok {
		return 0, core.NewNonConvergenceError("singular interaction covariance")
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, b); err != nil {
		return 0, core.NewNonConvergenceError("singular interaction covariance")
	}
	return mat.Dot(b, &x), nil
}
