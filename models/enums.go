package models

// OutcomeKind classifies the final result of one document (or one
// single-entity row). Every input row rolls up into exactly one outcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "Success"
	OutcomeSkip    OutcomeKind = "Skip"
	OutcomeFailure OutcomeKind = "Failure"
)

// PlanKind is the decision the upsert executor reached for a document.
type PlanKind string

const (
	PlanCreate             PlanKind = "Create"
	PlanUpdateReplaceLines PlanKind = "UpdateReplaceLines"
	PlanAppendLines        PlanKind = "AppendLines"
	PlanSkip               PlanKind = "Skip"
	PlanFail               PlanKind = "Fail"
)

// UpsertMode controls what happens when the natural key already exists in a
// mutable state. ReplaceLines is for documents whose lines are a complete
// bill of content; AppendLines is for documents accumulated over several
// imports; Single is for entities without lines (partners, products,
// employees).
type UpsertMode string

const (
	UpsertModeReplaceLines UpsertMode = "ReplaceLines"
	UpsertModeAppendLines  UpsertMode = "AppendLines"
	UpsertModeSingle       UpsertMode = "Single"
)

// DuplicatePolicy governs merging of lines that share the same
// (product, date) key within one document.
type DuplicatePolicy string

const (
	DuplicateSum       DuplicatePolicy = "Sum"
	DuplicateFirstWins DuplicatePolicy = "FirstWins"
	DuplicateError     DuplicatePolicy = "Error"
)

// ErrorCategory buckets failure records for the summary sheet.
type ErrorCategory string

const (
	CategoryConnection     ErrorCategory = "connection"
	CategoryRemoteFault    ErrorCategory = "remote_fault"
	CategoryReference      ErrorCategory = "reference_unresolved"
	CategoryNormalization  ErrorCategory = "normalization"
	CategoryLocked         ErrorCategory = "locked"
	CategoryVerification   ErrorCategory = "verification"
	CategoryUnsafeDisabled ErrorCategory = "unsafe_override_disabled"
)

// Skip reasons. Locked skips are reported but never counted as errors.
const (
	SkipReasonLocked          = "locked"
	SkipReasonUnsafeDisabled  = "unsafe-override-disabled"
	SkipReasonHeaderUnchanged = "existing-header-kept"
)

// PartnerRole selects which rank field is set when a partner chain is allowed
// to create the missing record.
type PartnerRole string

const (
	PartnerRoleCustomer PartnerRole = "customer"
	PartnerRoleVendor   PartnerRole = "vendor"
)
