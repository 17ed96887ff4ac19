package extract

// DateRange is the reporting period printed in the report header, as canonical dates.
type DateRange struct {
	From string `json:"fromDate"`
	To   string `json:"toDate"`
}

// IncidentRecord is one normalized downtime incident.
type IncidentRecord struct {
	DowntimeID      string `json:"downtimeId"`
	MachineID       string `json:"machineId"`
	MachineName     string `json:"machineName"`
	Segment         string `json:"segment"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	DurationMinutes int    `json:"durationMinutes"`
	ErrorCode       string `json:"errorCode"`
	ErrorType       string `json:"errorType"`
	ErrorLocation   string `json:"errorLocation,omitempty"`
	Description     string `json:"description"`
	SupplierRef     string `json:"supplierRef,omitempty"`
	GeneratedID     bool   `json:"generatedId,omitempty"`
}

// ErrorCodeRecord is an error code referenced by at least one incident.
type ErrorCodeRecord struct {
	Code     string `json:"code"`
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
}

// Summary aggregates an extraction result.
type Summary struct {
	DateRange
	TotalIncidents  int            `json:"totalIncidents"`
	TotalDowntime   int            `json:"totalDowntime"`
	MachineCounts   map[string]int `json:"machineCounts"`
	ErrorTypeCounts map[string]int `json:"errorTypeCounts"`
	Segments        []string       `json:"segments"`
	IsSynthetic     bool           `json:"isSynthetic"`
}

// Result is everything extracted from one report.
type Result struct {
	Machines   map[string]string          `json:"machines"`
	Downtimes  []IncidentRecord           `json:"downtimes"`
	ErrorCodes map[string]ErrorCodeRecord `json:"errorCodes"`
	Summary    Summary                    `json:"summary"`
	Warnings   []string                   `json:"warnings,omitempty"`
}

// NewResult returns an empty result for the given period.
func NewResult(period DateRange) *Result {
	return &Result{
		Machines:   make(map[string]string),
		Downtimes:  []IncidentRecord{},
		ErrorCodes: make(map[string]ErrorCodeRecord),
		Summary: Summary{
			DateRange:       period,
			MachineCounts:   make(map[string]int),
			ErrorTypeCounts: make(map[string]int),
			Segments:        []string{},
		},
	}
}

// Empty reports whether no incident was extracted.
func (r *Result) Empty() bool {
	return len(r.Downtimes) == 0
}

// AddMachine registers a machine; the latest name wins.
func (r *Result) AddMachine(id, name string) {
	r.Machines[id] = name
}

// AddSegment records a segment name once.
func (r *Result) AddSegment(name string) {
	for _, s := range r.Summary.Segments {
		if s == name {
			return
		}
	}
	r.Summary.Segments = append(r.Summary.Segments, name)
}

// AddIncident appends rec and updates the counters.
func (r *Result) AddIncident(rec IncidentRecord) {
	r.Downtimes = append(r.Downtimes, rec)
	if _, ok := r.Machines[rec.MachineID]; !ok {
		r.Machines[rec.MachineID] = rec.MachineName
	}

	key := errorCodeKey(rec.ErrorCode, rec.ErrorType)
	if _, ok := r.ErrorCodes[key]; !ok {
		r.ErrorCodes[key] = ErrorCodeRecord{Code: rec.ErrorCode, Type: rec.ErrorType, Location: rec.ErrorLocation}
	}

	r.Summary.TotalIncidents++
	r.Summary.TotalDowntime += rec.DurationMinutes
	r.Summary.MachineCounts[rec.MachineID]++
	r.Summary.ErrorTypeCounts[rec.ErrorType]++
}

func errorCodeKey(code, typ string) string {
	return code + "|" + typ
}
