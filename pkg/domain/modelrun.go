package domain

// RunState is the lifecycle state of a model run.
type RunState string

const (
	RunPending   RunState = "PENDING"
	RunRunning   RunState = "RUNNING"
	RunSuccess   RunState = "SUCCESS"
	RunFailed    RunState = "FAILED"
	RunCancelled RunState = "CANCELLED"
)

// Valid reports whether s is a known run state.
func (s RunState) Valid() bool {
	switch s {
	case RunPending, RunRunning, RunSuccess, RunFailed, RunCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions may leave s.
func (s RunState) Terminal() bool {
	switch s {
	case RunSuccess, RunFailed, RunCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows moving to next.
// PENDING admits RUNNING and CANCELLED; RUNNING admits SUCCESS, FAILED and
// CANCELLED; terminal states admit nothing.
func (s RunState) CanTransition(next RunState) bool {
	switch s {
	case RunPending:
		return next == RunRunning || next == RunCancelled
	case RunRunning:
		return next == RunSuccess || next == RunFailed || next == RunCancelled
	}
	return false
}

// ModelRun records one execution of a predictive model: the model reference,
// the lifecycle state, the caller-supplied arguments, and the result
// attachments produced on success. Attachments live inside the run record so
// that completing a run with results is a single persistence write.
type ModelRun struct {
	ObjectHandle
	ModelID     string
	State       RunState
	Arguments   *AttributeSet
	Attachments []Attachment
}

// Attachment returns the result attachment stored under filename.
func (r *ModelRun) Attachment(filename string) (Attachment, bool) {
	for _, a := range r.Attachments {
		if a.Filename == filename {
			return a, true
		}
	}
	return Attachment{}, false
}

// ToRecord encodes the run as plain record data.
func (r ModelRun) ToRecord() Record {
	rec := r.ObjectHandle.ToRecord()
	rec["model"] = r.ModelID
	rec["state"] = string(r.State)
	rec["arguments"] = r.Arguments.ToRecord()
	attachments := make([]any, len(r.Attachments))
	for i, a := range r.Attachments {
		attachments[i] = a.toRecord()
	}
	rec["attachments"] = attachments
	return rec
}

// ModelRunFromRecord decodes a run from record data.
func ModelRunFromRecord(rec Record) (ModelRun, error) {
	handle, err := ObjectFromRecord(rec)
	if err != nil {
		return ModelRun{}, err
	}
	run := ModelRun{ObjectHandle: handle}
	run.ModelID, _ = rec["model"].(string)
	state, _ := rec["state"].(string)
	run.State = RunState(state)
	if !run.State.Valid() {
		return ModelRun{}, NewError(ErrNotFound, "run %s has unknown state %q", handle.ID, state)
	}
	args, err := AttributeSetFromRecord(rec["arguments"])
	if err != nil {
		return ModelRun{}, err
	}
	run.Arguments = args
	if raw, ok := rec["attachments"].([]any); ok {
		run.Attachments = make([]Attachment, 0, len(raw))
		for _, v := range raw {
			att, err := attachmentFromRecord(v)
			if err != nil {
				return ModelRun{}, err
			}
			run.Attachments = append(run.Attachments, att)
		}
	}
	return run, nil
}
