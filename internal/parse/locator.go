package parse

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Field is a logical report field, independent of how a given export template names it.
type Field string

const (
	FieldSegmentName   Field = "segment_name"
	FieldMachineID     Field = "machine_id"
	FieldMachineName   Field = "machine_name"
	FieldDowntimeID    Field = "downtime_id"
	FieldDuration      Field = "duration"
	FieldErrorCode     Field = "error_code"
	FieldErrorType     Field = "error_type"
	FieldErrorLocation Field = "error_location"
	FieldDescription   Field = "description"
	FieldSupplierRef   Field = "supplier_ref"
	FieldFromDate      Field = "from_date"
	FieldToDate        Field = "to_date"
)

// candidate is one way an export template has labelled a field: an exact (case-insensitive)
// attribute value, or a substring of it when contains is set.
type candidate struct {
	attr     string
	name     string
	contains bool
}

func named(name string) candidate { return candidate{attr: "Name", name: name} }

func formula(fragment string) candidate {
	return candidate{attr: "FieldName", name: fragment, contains: true}
}

// positional names come from templates that numbered their fields instead of naming them.
func positional(name string) candidate { return candidate{attr: "Name", name: name} }

// fieldCandidates lists, per logical field, the names used by successive template versions.
// Current names come first, legacy positional names ("FieldN") last.
//
// Positional names are reused across sections: Field1/Field2 are the segment name and machine
// id in group headers but the from/to dates in the report header. Callers must resolve each
// field against the section kind it belongs to.
var fieldCandidates = map[Field][]candidate{
	FieldSegmentName: {
		named("SegmentName"), named("GroupNameSegment1"), named("Segment"),
		formula("segment"), positional("Field1"),
	},
	FieldMachineID: {
		named("MachineId"), named("MachineCode"), named("GroupNameMachine1"),
		formula("machine.code"), formula("machine.id"), positional("Field2"),
	},
	FieldMachineName: {
		named("MachineName"), named("MachineDescription"),
		formula("machine.name"), formula("machine.description"), positional("Field3"),
	},
	FieldDowntimeID: {
		named("DowntimeId"), named("StopId"), named("IncidentId"),
		formula("downtime.id"), positional("Field4"),
	},
	FieldDescription: {
		named("Description"), named("Notes"),
		formula("downtime.description"), positional("Field5"),
	},
	FieldDuration: {
		named("Duration"), named("DurationMinutes"), named("DowntimeMinutes"),
		formula("downtime.duration"), positional("Field6"),
	},
	FieldErrorCode: {
		named("ErrorCode"), named("FaultCode"),
		formula("error.code"), positional("Field7"),
	},
	FieldErrorType: {
		named("ErrorType"), named("FaultType"),
		formula("error.type"), positional("Field8"),
	},
	FieldErrorLocation: {
		named("ErrorLocation"), named("Location"),
		formula("error.location"), positional("Field9"),
	},
	FieldSupplierRef: {
		named("WorkSupplier"), named("SupplierRef"),
		formula("supplier"), positional("Field10"),
	},
	FieldFromDate: {
		named("FromDate"), named("DateFrom"), named("StartDate"),
		formula("fromdate"), positional("Field1"),
	},
	FieldToDate: {
		named("ToDate"), named("DateTo"), named("EndDate"),
		formula("todate"), positional("Field2"),
	},
}

const (
	upperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlpha = "abcdefghijklmnopqrstuvwxyz"
)

var (
	valueChildExpr     = xpath.MustCompile(`*[local-name()='Value']`)
	formattedChildExpr = xpath.MustCompile(`*[local-name()='FormattedValue']`)
)

// Locator resolves logical fields against report nodes.
type Locator struct {
	queries map[Field][]*xpath.Expr
}

// NewLocator compiles the candidate table.
func NewLocator() *Locator {
	l := &Locator{queries: make(map[Field][]*xpath.Expr, len(fieldCandidates))}
	for field, cands := range fieldCandidates {
		for _, c := range cands {
			l.queries[field] = append(l.queries[field], xpath.MustCompile(c.expr()))
		}
	}
	return l
}

func (c candidate) expr() string {
	attr := fmt.Sprintf("translate(@%s,'%s','%s')", c.attr, upperAlpha, lowerAlpha)
	name := strings.ToLower(c.name)
	if c.contains {
		return fmt.Sprintf(".//*[local-name()='Field'][contains(%s,'%s')]", attr, name)
	}
	return fmt.Sprintf(".//*[local-name()='Field'][%s='%s']", attr, name)
}

// Locate tries each candidate for field under node, in order, and returns the first non-blank
// text. When fields matched but all were blank the result is present and empty; when nothing
// matched it is absent.
func (l *Locator) Locate(node *xmlquery.Node, field Field) Value {
	return l.locate(node, field, nil)
}

// LocateOwn is Locate restricted to fields of node itself, skipping those inside a Details
// container or a nested Group.
func (l *Locator) LocateOwn(node *xmlquery.Node, field Field) Value {
	return l.locate(node, field, func(match *xmlquery.Node) bool {
		for p := match.Parent; p != nil && p != node; p = p.Parent {
			if p.Type == xmlquery.ElementNode && (p.Data == "Details" || p.Data == "Group") {
				return false
			}
		}
		return true
	})
}

func (l *Locator) locate(node *xmlquery.Node, field Field, keep func(*xmlquery.Node) bool) Value {
	if node == nil {
		return None()
	}
	result := None()
	for _, expr := range l.queries[field] {
		for _, match := range xmlquery.QuerySelectorAll(node, expr) {
			if keep != nil && !keep(match) {
				continue
			}
			text := strings.TrimSpace(FieldText(match))
			if text != "" {
				return Some(text)
			}
			result = Some("")
		}
	}
	return result
}

// FieldText returns the text of a report Field element: its Value child, then its
// FormattedValue child, then its own content.
func FieldText(field *xmlquery.Node) string {
	if field == nil {
		return ""
	}
	if v := xmlquery.QuerySelector(field, valueChildExpr); v != nil {
		if s := strings.TrimSpace(v.InnerText()); s != "" {
			return s
		}
	}
	if v := xmlquery.QuerySelector(field, formattedChildExpr); v != nil {
		if s := strings.TrimSpace(v.InnerText()); s != "" {
			return s
		}
	}
	return field.InnerText()
}
