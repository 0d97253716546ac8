package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractReportLine(t *testing.T) {
	got := Extract("Patient: Jane Smith BP 120/80 Glucose: 95 mg/dl Date: 2024-01-15")

	assert.Equal(t, map[string]string{
		FieldBloodPressure: "120/80",
		FieldGlucose:       "95 mg/dL",
		FieldDate:          "2024-01-15",
		FieldPatientName:   "Jane Smith",
	}, got)
}

func TestExtractAbsentFieldsHaveNoKey(t *testing.T) {
	got := Extract("Routine follow-up. No acute findings.")
	assert.Empty(t, got)

	got = Extract("")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtractGlucoseRuleOrder(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want string
	}{
		{name: "glucose with unit", text: "GLUCOSE 101.5 MG/DL", want: "101.5 mg/dL"},
		{name: "blood sugar", text: "Blood Sugar: 140", want: "140 mg/dL"},
		{name: "fasting glucose without unit", text: "fasting glucose: 88", want: "88 mg/dL"},
		{name: "first rule wins", text: "Blood sugar: 150\nGlucose: 90 mg/dl", want: "90 mg/dL"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Extract(tc.text)[FieldGlucose])
		})
	}
}

func TestExtractDate(t *testing.T) {
	assert.Equal(t, "15/01/2024", Extract("Visit 15/01/2024 and 2023-12-01")[FieldDate])
	assert.Equal(t, "2023-12-01", Extract("Collected 2023-12-01")[FieldDate])
	assert.Equal(t, "1-5-24", Extract("seen 1-5-24")[FieldDate])
}

func TestExtractBloodPressureTakesFirst(t *testing.T) {
	assert.Equal(t, "135/85", Extract("BP 135/85, repeat 120/80")[FieldBloodPressure])
	_, ok := Extract("ratio 1/2")[FieldBloodPressure]
	assert.False(t, ok)
}

func TestExtractPatientNameLength(t *testing.T) {
	testCases := []struct {
		name    string
		text    string
		want    string
		present bool
	}{
		{name: "length 1 omitted", text: "Patient: J", present: false},
		{name: "length 60 omitted", text: "Patient: " + strings.Repeat("a", 60), present: false},
		{name: "length 10 title-cased", text: "Patient: abcde fghi", want: "Abcde Fghi", present: true},
		{name: "name label", text: "NAME: john DOE", want: "John Doe", present: true},
		{name: "patient name label", text: "Patient Name: mary ann", want: "Mary Ann", present: true},
		{name: "stops at line break", text: "Patient: Ravi Kumar\nAddress: 12 Main St", want: "Ravi Kumar", present: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			name, ok := Extract(tc.text)[FieldPatientName]
			assert.Equal(t, tc.present, ok)
			if tc.present {
				assert.Equal(t, tc.want, name)
			}
		})
	}
}

func TestExtractPatientNameFirstLabelDecides(t *testing.T) {
	// "Patient: X" is out of range, so the later "Name:" line is not consulted
	_, ok := Extract("Patient: X\nName: Maria Lopez")[FieldPatientName]
	assert.False(t, ok)
}

func TestExtractReadingsTouchingLabelsAndUnits(t *testing.T) {
	testCases := []struct {
		name  string
		text  string
		field string
		want  string
	}{
		{name: "unit after reading", text: "BP: 120/80mmHg", field: FieldBloodPressure, want: "120/80"},
		{name: "label before reading", text: "BP120/80", field: FieldBloodPressure, want: "120/80"},
		{name: "reading at line start", text: "118/76 seated", field: FieldBloodPressure, want: "118/76"},
		{name: "label before date", text: "Date15/01/2024", field: FieldDate, want: "15/01/2024"},
		{name: "label before iso date", text: "Collected:2024-01-15T08:00", field: FieldDate, want: "2024-01-15"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Extract(tc.text)[tc.field])
		})
	}
}

func TestExtractDigitNeighboursRejectMatch(t *testing.T) {
	_, ok := Extract("ref 1234/56")[FieldBloodPressure]
	assert.False(t, ok)

	assert.Equal(t, "2024-01-15", Extract("Date: 2024-01-15")[FieldDate])
}
