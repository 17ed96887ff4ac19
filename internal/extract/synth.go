package extract

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

type demoErrorType struct {
	code, label, location string
}

var (
	demoMachines = []struct{ id, name string }{
		{"DEMO-01", "Demo press line 1"},
		{"DEMO-02", "Demo press line 2"},
		{"DEMO-03", "Demo welding cell"},
		{"DEMO-04", "Demo paint booth"},
		{"DEMO-05", "Demo assembly conveyor"},
	}

	demoErrorTypes = []demoErrorType{
		{"MEC-01", "Mechanical", "Drive train"},
		{"ELE-01", "Electrical", "Control cabinet"},
		{"HYD-01", "Hydraulic", "Main cylinder"},
		{"PNE-01", "Pneumatic", "Valve block"},
		{"SW-01", "Software", "PLC"},
	}
)

const (
	demoMaxIncidents = 4
	demoMinDuration  = 5
	demoMaxDuration  = 180
	demoSegment      = "Demo"
	demoDescription  = "Synthetic %s stop on %s"
)

// Synthesizer fabricates a plausible incident set for reports that yield no real data.
// Its output is always flagged synthetic. It is safe for concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer creates a synthesizer. A zero seed draws one from the clock.
func NewSynthesizer(seed int64) *Synthesizer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Synthesizer{rng: rand.New(rand.NewSource(seed))}
}

// Synthesize returns between one and demoMaxIncidents incidents per demo machine.
func (s *Synthesizer) Synthesize(period DateRange) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := NewResult(period)
	result.Summary.IsSynthetic = true
	result.AddSegment(demoSegment)

	for _, m := range demoMachines {
		result.AddMachine(m.id, m.name)
		n := 1 + s.rng.Intn(demoMaxIncidents)
		for i := 1; i <= n; i++ {
			et := demoErrorTypes[s.rng.Intn(len(demoErrorTypes))]
			result.AddIncident(IncidentRecord{
				DowntimeID:      fmt.Sprintf("%s-%03d", m.id, i),
				MachineID:       m.id,
				MachineName:     m.name,
				Segment:         demoSegment,
				StartDate:       period.From,
				EndDate:         period.To,
				DurationMinutes: demoMinDuration + s.rng.Intn(demoMaxDuration-demoMinDuration+1),
				ErrorCode:       et.code,
				ErrorType:       et.label,
				ErrorLocation:   et.location,
				Description:     fmt.Sprintf(demoDescription, et.label, m.name),
				GeneratedID:     true,
			})
		}
	}
	return result
}
