package sim

// UtilitySpec couples a model's formulas with per-formula
// coefficients. The utility of an interaction row is the
// coefficient-weighted sum of the formula output columns, which is the
// spec-rows-dotted-with-coefficients structure of the source model
// files.
type UtilitySpec struct {
	Formulas     []Formula
	Coefficients []float64
}

// InteractionConfig groups the knobs of one chunked interaction run.
type InteractionConfig struct {
	StepName         string     // scopes the per-chooser RNG streams
	Mode             ChoiceMode // simulate, sample, or logsums
	SampleSize       int        // alternatives per chooser in sample mode
	ChunkBudget      int        // interaction cells per chunk; 0 = single chunk
	CheckVariability bool       // fail the step on a constant utility surface
	AltColumn        string     // interaction column carrying alternative ids; default "alt_id"
	Nests            *NestSpec  // non-nil switches simulate/logsums to nested logit
}

// RunConfig groups the pipeline-wide settings consumed by the
// orchestrator. Supplied once at start and immutable for the run.
type RunConfig struct {
	Models           []string // ordered step list, each may carry one key=value suffix
	ResumeAfter      string   // checkpoint name to resume after; "" = start fresh
	Seed             int64    // master seed for all choice draws
	ChunkBudget      int      // interaction cells per chunk (0 = unchunked)
	CheckVariability bool
	Workers          int // chunk worker pool size; <=1 = serial
}

// ZoneThresholds classifies zones by density into area types. Consumed
// by annotation steps; thresholds come from settings.
type ZoneThresholds struct {
	CBDDensity   float64 // density at or above which a zone is CBD
	UrbanDensity float64 // density at or above which a zone is urban
	// below UrbanDensity is rural
}

// AreaType codes written by zone annotation.
const (
	AreaTypeRural = 0.0
	AreaTypeUrban = 1.0
	AreaTypeCBD   = 2.0
)

// Classify maps a density to an area type code.
func (z ZoneThresholds) Classify(density float64) float64 {
	switch {
	case density >= z.CBDDensity:
		return AreaTypeCBD
	case density >= z.UrbanDensity:
		return AreaTypeUrban
	default:
		return AreaTypeRural
	}
}
