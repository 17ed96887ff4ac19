package parse

import (
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const locatorDoc = `<CrystalReport xmlns="urn:crystal-reports:schemas:report-detail">
  <Details Level="3">
    <Section SectionNumber="0">
      <Field Name="DowntimeId" FieldName="{Downtime.ID}"><FormattedValue>D-1</FormattedValue><Value>D-1</Value></Field>
      <Field Name="ErrorCode" FieldName="{Error.Code}"><FormattedValue></FormattedValue><Value></Value></Field>
      <Field Name="Field7"><Value>E-LEGACY</Value></Field>
      <Field Name="x" FieldName="{Error.Type}"><FormattedValue>Mechanical</FormattedValue></Field>
      <Field Name="DESCRIPTION">Belt snapped</Field>
      <Field Name="Location"><Value>   </Value></Field>
    </Section>
  </Details>
</CrystalReport>`

func parseDoc(t *testing.T, doc string) *xmlquery.Node {
	t.Helper()
	root, err := xmlquery.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	return root
}

func TestLocator_Locate(t *testing.T) {
	root := parseDoc(t, locatorDoc)
	l := NewLocator()

	testCases := []struct {
		name     string
		field    Field
		expected string
		present  bool
	}{
		{name: "Modern name", field: FieldDowntimeID, expected: "D-1", present: true},
		{name: "Empty modern name falls through to legacy", field: FieldErrorCode, expected: "E-LEGACY", present: true},
		{name: "Formula attribute and formatted value", field: FieldErrorType, expected: "Mechanical", present: true},
		{name: "Case-insensitive name and own text", field: FieldDescription, expected: "Belt snapped", present: true},
		{name: "Present but blank", field: FieldErrorLocation, expected: "", present: true},
		{name: "Absent", field: FieldDuration, expected: "", present: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := l.Locate(root, tc.field)
			text, ok := v.Get()
			assert.Equal(t, tc.present, ok)
			assert.Equal(t, tc.expected, text)
		})
	}
}

func TestLocator_LocateOwn(t *testing.T) {
	root := parseDoc(t, `<Group Level="2">
  <Field Name="MachineName"><Value>Press 4</Value></Field>
  <Details><Section><Field Name="Field2"><Value>D-9</Value></Field></Section></Details>
  <Group Level="3"><Field Name="MachineId"><Value>NESTED</Value></Field></Group>
</Group>`)
	group := xmlquery.FindOne(root, "/Group")
	l := NewLocator()

	assert.Equal(t, "NESTED", l.Locate(group, FieldMachineID).OrElse(""))
	assert.False(t, l.LocateOwn(group, FieldMachineID).Present())
	assert.Equal(t, "Press 4", l.LocateOwn(group, FieldMachineName).OrElse(""))
}

func TestLocator_NilNode(t *testing.T) {
	v := NewLocator().Locate(nil, FieldMachineID)
	assert.False(t, v.Present())
	assert.Equal(t, "fallback", v.OrElse("fallback"))
}

func TestValue_OrElse(t *testing.T) {
	assert.Equal(t, "x", Some(" x ").OrElse("d"))
	assert.Equal(t, "d", Some("").OrElse("d"))
	assert.Equal(t, "d", None().OrElse("d"))
}
