package constants

// QualityBucket classifies a reconciled field by its mapping quality score.
type QualityBucket string

const (
	QualityHigh     QualityBucket = "high"     // score >= 0.9
	QualityMedium   QualityBucket = "medium"   // score >= 0.7
	QualityLow      QualityBucket = "low"      // score >= 0.5
	QualityCritical QualityBucket = "critical" // everything below
)

// BucketForScore maps a per-field quality score in [0,1] to its bucket.
func BucketForScore(score float64) QualityBucket {
	switch {
	case score >= 0.9:
		return QualityHigh
	case score >= 0.7:
		return QualityMedium
	case score >= 0.5:
		return QualityLow
	default:
		return QualityCritical
	}
}

// ConflictKind tags a field conflict with the strategy used to resolve it.
// The set is closed; the resolver switches exhaustively over these.
type ConflictKind string

const (
	ConflictTypeMismatch    ConflictKind = "type_mismatch"
	ConflictMissingRequired ConflictKind = "missing_required"
	ConflictValidationFail  ConflictKind = "validation_failed"
	ConflictFormatMismatch  ConflictKind = "format_mismatch"
)

// ValidationStage names the ordered stages of the validation pipeline.
type ValidationStage string

const (
	StageStructure     ValidationStage = "structure"
	StageTypes         ValidationStage = "types"
	StageContent       ValidationStage = "content"
	StageRelationships ValidationStage = "relationships"
	StageBusinessRules ValidationStage = "business_rules"
)

// ValidationStages is the canonical execution order. Structural problems make
// type/content checks meaningless, so the cheaper fundamental checks run first.
var ValidationStages = []ValidationStage{
	StageStructure,
	StageTypes,
	StageContent,
	StageRelationships,
	StageBusinessRules,
}

// Value-source labels for reconciled fields that did not come from a candidate.
const (
	SourceMissing  = "missing"
	SourceInferred = "inferred"
)
