package moderation

// The pipeline threads its progress through three immutable stages. Each
// upgrade returns a new value, so a stage that needs a persisted case can
// only be called with an ExecComplete.

// ExecState is implemented by every stage, for code such as cleanup that
// must accept any of them.
type ExecState interface {
	Action() Action
	ActionType() ActionType
	Target() Target
	HasCaseID() bool
	HasModerationCase() bool
}

// ExecInitial holds the action, its resolved type, the target and the open
// record-creation transaction.
type ExecInitial struct {
	action   Action
	resolved ActionType
	target   Target
	tx       Tx
}

// NewExec starts a pipeline run.
func NewExec(action Action, resolved ActionType, target Target, tx Tx) ExecInitial {
	return ExecInitial{action: action, resolved: resolved, target: target, tx: tx}
}

func (e ExecInitial) Action() Action          { return e.action }
func (e ExecInitial) ActionType() ActionType  { return e.resolved }
func (e ExecInitial) Target() Target          { return e.target }
func (e ExecInitial) Tx() Tx                  { return e.tx }
func (e ExecInitial) HasCaseID() bool         { return false }
func (e ExecInitial) HasModerationCase() bool { return false }

// WithCaseID records the allocated case number.
func (e ExecInitial) WithCaseID(caseID int64) ExecWithCaseID {
	return ExecWithCaseID{base: e, caseID: caseID}
}

// ExecWithCaseID is a run whose case number is allocated but whose case may
// not be written yet.
type ExecWithCaseID struct {
	base   ExecInitial
	caseID int64
}

func (e ExecWithCaseID) Action() Action          { return e.base.action }
func (e ExecWithCaseID) ActionType() ActionType  { return e.base.resolved }
func (e ExecWithCaseID) Target() Target          { return e.base.target }
func (e ExecWithCaseID) Tx() Tx                  { return e.base.tx }
func (e ExecWithCaseID) CaseID() int64           { return e.caseID }
func (e ExecWithCaseID) HasCaseID() bool         { return true }
func (e ExecWithCaseID) HasModerationCase() bool { return false }

// WithCase records the persisted case. The transaction is not carried over:
// a complete run has committed its record.
func (e ExecWithCaseID) WithCase(c Case) ExecComplete {
	return ExecComplete{
		action:   e.base.action,
		resolved: e.base.resolved,
		target:   e.base.target,
		caseID:   e.caseID,
		c:        c,
	}
}

// ExecComplete is a run with a committed case.
type ExecComplete struct {
	action   Action
	resolved ActionType
	target   Target
	caseID   int64
	c        Case
}

func (e ExecComplete) Action() Action          { return e.action }
func (e ExecComplete) ActionType() ActionType  { return e.resolved }
func (e ExecComplete) Target() Target          { return e.target }
func (e ExecComplete) CaseID() int64           { return e.caseID }
func (e ExecComplete) Case() Case              { return e.c }
func (e ExecComplete) HasCaseID() bool         { return true }
func (e ExecComplete) HasModerationCase() bool { return true }

// WithUpdatedCase replaces the case, e.g. after the DM result was attached.
func (e ExecComplete) WithUpdatedCase(c Case) ExecComplete {
	e.c = c
	return e
}
