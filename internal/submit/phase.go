package submit

// Phase is a state of the submission pipeline.
//
// Succeeded means the server accepted the request, whether or not
// validation raised warnings; the warnings travel in Result.Warnings.
// SucceededWithWarnings means the request was not delivered (a rejected
// field or an unexpected error) but is reported as a soft success.
type Phase int

const (
	Idle Phase = iota
	Validating
	Submitting
	Succeeded
	SucceededWithWarnings
	QueuedOffline
)

var phaseNames = [...]string{
	Idle:                  "idle",
	Validating:            "validating",
	Submitting:            "submitting",
	Succeeded:             "succeeded",
	SucceededWithWarnings: "succeeded_with_warnings",
	QueuedOffline:         "queued_offline",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Terminal reports whether p ends a submission.
func (p Phase) Terminal() bool {
	return p == Succeeded || p == SucceededWithWarnings || p == QueuedOffline
}
