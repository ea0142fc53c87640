package status

//Status represents recording processing status
type Status int

const (
	// Pending - recording stored, processing not started
	Pending Status = iota + 1
	// Processing - transcription stage is running
	Processing
	// Analyzing - transcript saved, analysis stage is running
	Analyzing
	// Completed - final step, transcript available
	Completed
	// Failed - final step, transcription failed
	Failed
)

var (
	statusName = map[Status]string{Pending: "pending", Processing: "processing", Analyzing: "analyzing",
		Completed: "completed", Failed: "failed"}
	nameStatus = map[string]Status{"pending": Pending, "processing": Processing, "analyzing": Analyzing,
		"completed": Completed, "failed": Failed}
)

// transitions lists allowed moves. Writing the same status again is always allowed.
// Analyzing -> Failed is kept only for the last resort failure marking.
var transitions = map[Status][]Status{
	Pending:    {Processing},
	Processing: {Analyzing, Failed},
	Analyzing:  {Completed, Failed},
}

func (st Status) String() string {
	return statusName[st]
}

// From returns status obj from string, 0 if unknown
func From(st string) Status {
	return nameStatus[st]
}

// Valid returns true if st is a known status
func (st Status) Valid() bool {
	_, ok := statusName[st]
	return ok
}

// Terminal returns true for the final pipeline statuses
func (st Status) Terminal() bool {
	return st == Completed || st == Failed
}

// CanMove checks if the pipeline may move from -> to
func CanMove(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedFrom returns all statuses that may move into to
func AllowedFrom(to Status) []Status {
	res := []Status{}
	for _, s := range []Status{Pending, Processing, Analyzing, Completed, Failed} {
		if CanMove(s, to) {
			res = append(res, s)
		}
	}
	return res
}

// Names maps statuses to their string values
func Names(sts []Status) []string {
	res := make([]string, 0, len(sts))
	for _, s := range sts {
		res = append(res, s.String())
	}
	return res
}
