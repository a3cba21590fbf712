package pipeline

// State is a step of the import session.
type State string

// Session states. A session starts in StateUpload and returns there after a
// successful submission or a reset.
const (
	StateUpload     State = "upload"
	StateMapping    State = "mapping"
	StatePreview    State = "preview"
	StateSubmitting State = "submitting"
	StateDone       State = "done"
)

// allows reports whether op may run in state s.
func (s State) allows(op operation) bool {
	switch op {
	case opLoad:
		return s == StateUpload || s == StateMapping
	case opSetMapping, opProceed:
		return s == StateMapping
	case opBack, opEdit, opRemove, opSubmit:
		return s == StatePreview
	}
	return false
}

type operation string

const (
	opLoad       operation = "load a file"
	opSetMapping operation = "change the column mapping"
	opProceed    operation = "continue to the preview"
	opBack       operation = "go back to the mapping"
	opEdit       operation = "edit a record"
	opRemove     operation = "remove a record"
	opSubmit     operation = "submit"
)
