package extract

import (
	"errors"
	"fmt"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"

	"downtime-report-backend/internal/parse"
)

const (
	DefaultErrorCode = "UNKNOWN"
	DefaultErrorType = "Unclassified"
)

// ErrUntraversable is returned for nodes the extractor cannot read at all.
var ErrUntraversable = errors.New("incident node cannot be traversed")

// Status tags the outcome of extracting one incident node.
type Status int

const (
	// Kept means the node produced an incident.
	Kept Status = iota
	// Rejected means the node had no positive duration and is excluded.
	Rejected
)

// Extraction is the outcome of Extractor.Extract.
type Extraction struct {
	Status Status
	Record IncidentRecord
}

// Scope is the context an incident node is read in.
type Scope struct {
	MachineID   string
	MachineName string
	Segment     string
	Period      DateRange
	// Ordinal numbers incidents within the machine; it keys generated ids.
	Ordinal int
}

// Extractor builds incident records from report nodes.
type Extractor struct {
	locator   *parse.Locator
	namespace uuid.UUID
}

// NewExtractor creates an extractor. Generated ids are derived from namespace, so the same
// report always yields the same ids and different reports never share one.
func NewExtractor(locator *parse.Locator, namespace uuid.UUID) *Extractor {
	return &Extractor{locator: locator, namespace: namespace}
}

// Extract reads one incident node. Start and end always come from the report period.
func (e *Extractor) Extract(node *xmlquery.Node, scope Scope) (Extraction, error) {
	if node == nil || node.Type != xmlquery.ElementNode {
		return Extraction{}, ErrUntraversable
	}

	minutes, ok := parse.ParseMinutes(e.locator.Locate(node, parse.FieldDuration).OrElse("0"))
	if !ok || minutes <= 0 {
		return Extraction{Status: Rejected}, nil
	}

	rec := IncidentRecord{
		MachineID:       scope.MachineID,
		MachineName:     scope.MachineName,
		Segment:         scope.Segment,
		StartDate:       scope.Period.From,
		EndDate:         scope.Period.To,
		DurationMinutes: parse.WholeMinutes(minutes),
		ErrorCode:       e.locator.Locate(node, parse.FieldErrorCode).OrElse(DefaultErrorCode),
		ErrorType:       e.locator.Locate(node, parse.FieldErrorType).OrElse(DefaultErrorType),
		ErrorLocation:   e.locator.Locate(node, parse.FieldErrorLocation).OrElse(""),
		Description:     e.locator.Locate(node, parse.FieldDescription).OrElse(""),
		SupplierRef:     e.locator.Locate(node, parse.FieldSupplierRef).OrElse(""),
	}

	if id, ok := e.locator.Locate(node, parse.FieldDowntimeID).Get(); ok && id != "" {
		rec.DowntimeID = id
	} else {
		rec.DowntimeID = e.generatedID(scope)
		rec.GeneratedID = true
	}

	return Extraction{Status: Kept, Record: rec}, nil
}

func (e *Extractor) generatedID(scope Scope) string {
	name := fmt.Sprintf("%s/%s/%d", scope.Segment, scope.MachineID, scope.Ordinal)
	return "GEN-" + uuid.NewSHA1(e.namespace, []byte(name)).String()
}

// ReportNamespace derives the id namespace for a report from its content hash.
func ReportNamespace(contentHash string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("downtime-report:"+contentHash))
}
