package analysis

// Method is the tagged variant naming a statistical procedure.
type Method string

const (
	MethodUndetermined  Method = "undetermined"
	MethodStudentT      Method = "student_t"
	MethodWelchT        Method = "welch_t"
	MethodMannWhitney   Method = "mann_whitney_u"
	MethodANOVA         Method = "one_way_anova"
	MethodKruskalWallis Method = "kruskal_wallis"
	MethodPairedT       Method = "paired_t"
	MethodWilcoxon      Method = "wilcoxon_signed_rank"
	MethodRMANOVA       Method = "repeated_measures_anova"
	MethodFriedman      Method = "friedman"
	MethodMixedModel    Method = "linear_mixed_model"
	MethodChiSquare     Method = "chi_square_independence"
)

// Decision is the selector's output: the method and the rule that chose it.
type Decision struct {
	Method      Method `json:"method"`
	Rule        string `json:"rule"`
	Reason      string `json:"reason"`
	RandomSlope bool   `json:"random_slope,omitempty"`
}

// TestResult is the output of one executed test.
type TestResult struct {
	Method         Method             `json:"method"`
	Statistic      float64            `json:"statistic"`
	PValue         float64            `json:"p_value"`
	EffectSize     *float64           `json:"effect_size,omitempty"`
	EffectSizeKind string             `json:"effect_size_kind,omitempty"`
	DF             *float64           `json:"df,omitempty"`
	DF2            *float64           `json:"df2,omitempty"`
	GroupsCompared []string           `json:"groups_compared"`
	N              int                `json:"n"`
	Model          *ModelDiagnostics  `json:"model,omitempty"`
	Diagnostics    map[string]float64 `json:"diagnostics,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
}

// JointPValueMethod names how a mixed model's task-level p-value was formed.
const (
	JointMinP = "min-p" // minimum over interaction coefficients; an approximation, not a joint test
)

// ModelDiagnostics carries mixed-model fit information.
type ModelDiagnostics struct {
	LogLikelihood    float64       `json:"log_likelihood"`
	AIC              float64       `json:"aic"`
	BIC              float64       `json:"bic"`
	Converged        bool          `json:"converged"`
	Iterations       int           `json:"iterations"`
	Estimation       string        `json:"estimation"`
	Observations     int           `json:"observations"`
	Subjects         int           `json:"subjects"`
	RandomSlope      bool          `json:"random_slope"`
	ResidualVariance float64       `json:"residual_variance"`
	RandomEffects    []float64     `json:"random_effects_cov"`
	Coefficients     []Coefficient `json:"coefficients"`
	InteractionTerms []string      `json:"interaction_terms"`
	JointPMethod     string        `json:"joint_p_method"`
	JointWaldChi2    float64       `json:"joint_wald_chi2"`
	JointWaldDF      int           `json:"joint_wald_df"`
	JointWaldP       float64       `json:"joint_wald_p"`
}

// Coefficient is one row of the fixed-effects table.
type Coefficient struct {
	Term        string  `json:"term"`
	Estimate    float64 `json:"estimate"`
	StdError    float64 `json:"std_error"`
	Z           float64 `json:"z"`
	PValue      float64 `json:"p_value"`
	Interaction bool    `json:"interaction"`
}

// Float64 returns a pointer to v, for optional result fields.
func Float64(v float64) *float64 {
	return &v
}
