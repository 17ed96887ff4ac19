package extract

import (
	"fmt"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"downtime-report-backend/internal/parse"
)

var (
	headerExpr       = xpath.MustCompile(`//*[local-name()='ReportHeader' or local-name()='PageHeader']`)
	segmentExpr      = xpath.MustCompile(`//*[local-name()='Group'][@Level='1']`)
	machineExpr      = xpath.MustCompile(`.//*[local-name()='Group'][@Level='2']`)
	nestedGroupExpr  = xpath.MustCompile(`.//*[local-name()='Group']`)
	groupHeaderExpr  = xpath.MustCompile(`*[local-name()='GroupHeader']`)
	detailsExpr      = xpath.MustCompile(`.//*[local-name()='Details']`)
	sectionChildExpr = xpath.MustCompile(`*[local-name()='Section']`)
	// Header and footer sections hold labels and subtotals, never incidents.
	looseSectionExpr = xpath.MustCompile(`//*[local-name()='Section'][not(ancestor::*[` +
		`local-name()='ReportHeader' or local-name()='ReportFooter' or ` +
		`local-name()='PageHeader' or local-name()='PageFooter' or ` +
		`local-name()='GroupHeader' or local-name()='GroupFooter'])]`)
)

// DefaultSegment names incidents whose report has no segment grouping.
const DefaultSegment = "Default"

// WalkerOptions configures a Walker.
type WalkerOptions struct {
	// Namespace keys generated downtime ids; see ReportNamespace.
	Namespace string
	// DefaultMachineID and DefaultMachineName identify incidents found outside any machine group.
	DefaultMachineID   string
	DefaultMachineName string
	Dates              parse.DateNormalizer
}

// Walker traverses segment, machine and incident groups of a report.
type Walker struct {
	locator   *parse.Locator
	extractor *Extractor
	opts      WalkerOptions
}

// NewWalker creates a walker.
func NewWalker(opts WalkerOptions) *Walker {
	if opts.DefaultMachineID == "" {
		opts.DefaultMachineID = "UNKNOWN"
	}
	if opts.DefaultMachineName == "" {
		opts.DefaultMachineName = "Unknown machine"
	}
	locator := parse.NewLocator()
	return &Walker{
		locator:   locator,
		extractor: NewExtractor(locator, ReportNamespace(opts.Namespace)),
		opts:      opts,
	}
}

// Walk extracts every incident from doc. The result is empty when the report holds no
// usable incident in any known layout.
func (w *Walker) Walk(doc *xmlquery.Node) *Result {
	period := w.Period(doc)
	var faults *multierror.Error

	result := NewResult(period)
	ordinals := make(map[string]int)
	for i, segment := range xmlquery.QuerySelectorAll(doc, segmentExpr) {
		faults = multierror.Append(faults, w.walkSegment(result, segment, i+1, ordinals)...)
	}

	if result.Empty() {
		flat := NewResult(period)
		faults = multierror.Append(faults, w.walkSections(flat, doc)...)
		if !flat.Empty() {
			log.WithField("incidents", len(flat.Downtimes)).Info("recovered incidents from ungrouped sections")
			result = flat
		}
	}

	if err := faults.ErrorOrNil(); err != nil {
		log.Warnf("report walk skipped %d nodes: %v", len(faults.Errors), err)
		for _, e := range faults.Errors {
			result.Warnings = append(result.Warnings, e.Error())
		}
	}
	return result
}

// Period resolves the report's date range from its header.
func (w *Walker) Period(doc *xmlquery.Node) DateRange {
	header := xmlquery.QuerySelector(doc, headerExpr)
	from := w.locator.Locate(header, parse.FieldFromDate).OrElse("")
	to := w.locator.Locate(header, parse.FieldToDate).OrElse("")
	return DateRange{
		From: w.opts.Dates.Normalize(from),
		To:   w.opts.Dates.Normalize(to),
	}
}

// ordinals numbers incidents per segment and machine across the whole document, so a machine
// split over several groups never reuses a generated id.
func (w *Walker) walkSegment(result *Result, segment *xmlquery.Node, index int, ordinals map[string]int) []error {
	machines := xmlquery.QuerySelectorAll(segment, machineExpr)

	// Older exports have a single grouping level: the level-1 group is the machine.
	if len(machines) == 0 && xmlquery.QuerySelector(segment, nestedGroupExpr) == nil {
		result.AddSegment(DefaultSegment)
		return w.walkMachine(result, segment, DefaultSegment, ordinals)
	}

	header := xmlquery.QuerySelector(segment, groupHeaderExpr)
	name := w.locator.Locate(header, parse.FieldSegmentName).OrElse(fmt.Sprintf("Segment %d", index))
	result.AddSegment(name)

	var errs []error
	for _, machine := range machines {
		errs = append(errs, w.walkMachine(result, machine, name, ordinals)...)
	}
	return errs
}

func (w *Walker) walkMachine(result *Result, group *xmlquery.Node, segment string, ordinals map[string]int) []error {
	locate := w.locator.LocateOwn
	header := xmlquery.QuerySelector(group, groupHeaderExpr)
	if header != nil {
		locate = w.locator.Locate
	} else {
		header = group
	}

	nameValue := locate(header, parse.FieldMachineName)
	id := locate(header, parse.FieldMachineID).OrElse(nameValue.OrElse(w.opts.DefaultMachineID))
	name := nameValue.OrElse(id)
	result.AddMachine(id, name)

	key := segment + "/" + id
	var errs []error
	for _, details := range xmlquery.QuerySelectorAll(group, detailsExpr) {
		for _, node := range incidentNodes(details) {
			ordinals[key]++
			ordinal := ordinals[key]
			scope := Scope{MachineID: id, MachineName: name, Segment: segment, Period: result.Summary.DateRange, Ordinal: ordinal}
			if err := w.extractInto(result, node, scope); err != nil {
				errs = append(errs, fmt.Errorf("machine %s incident %d: %w", id, ordinal, err))
			}
		}
	}
	return errs
}

// walkSections treats every Section outside header and footer containers as an incident of
// the default machine.
func (w *Walker) walkSections(result *Result, doc *xmlquery.Node) []error {
	scope := Scope{
		MachineID:   w.opts.DefaultMachineID,
		MachineName: w.opts.DefaultMachineName,
		Segment:     DefaultSegment,
		Period:      result.Summary.DateRange,
	}

	var errs []error
	for i, node := range xmlquery.QuerySelectorAll(doc, looseSectionExpr) {
		scope.Ordinal = i + 1
		if err := w.extractInto(result, node, scope); err != nil {
			errs = append(errs, fmt.Errorf("section %d: %w", scope.Ordinal, err))
		}
	}
	if !result.Empty() {
		result.AddMachine(scope.MachineID, scope.MachineName)
		result.AddSegment(DefaultSegment)
	}
	return errs
}

func (w *Walker) extractInto(result *Result, node *xmlquery.Node, scope Scope) error {
	out, err := w.extractor.Extract(node, scope)
	if err != nil {
		return err
	}
	if out.Status == Kept {
		result.AddIncident(out.Record)
	} else {
		log.WithFields(log.Fields{"machine": scope.MachineID, "ordinal": scope.Ordinal}).Debug("incident without positive duration dropped")
	}
	return nil
}

// incidentNodes returns the sections of a Details container, or the container itself.
func incidentNodes(details *xmlquery.Node) []*xmlquery.Node {
	if sections := xmlquery.QuerySelectorAll(details, sectionChildExpr); len(sections) > 0 {
		return sections
	}
	return []*xmlquery.Node{details}
}
