/**
 * Field Extractor
 *
 * Pulls a handful of clinical fields out of recognized report text with
 * ordered regular expressions. This is best-effort: a field that no rule
 * matches is simply left out of the result.
 */

package extraction

import (
	"regexp"
	"strings"
)

// Structured field names
const (
	FieldBloodPressure = "blood_pressure"
	FieldGlucose       = "glucose"
	FieldDate          = "date"
	FieldPatientName   = "patient_name"
)

// Fields lists every structured field in extraction order
var Fields = []string{FieldBloodPressure, FieldGlucose, FieldDate, FieldPatientName}

const (
	minNameLen = 2
	maxNameLen = 50
)

var (
	// A neighbouring digit rejects the reading, a unit or label may touch it (BP120/80mmHg)
	bloodPressurePattern = regexp.MustCompile(`(?:^|\D)(\d{2,3})/(\d{2,3})(?:\D|$)`)

	glucosePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)glucose[:\s]*(\d+\.?\d*)\s*mg/dl`),
		regexp.MustCompile(`(?i)blood sugar[:\s]*(\d+\.?\d*)`),
		regexp.MustCompile(`(?i)fasting glucose[:\s]*(\d+\.?\d*)`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:^|\D)(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})(?:\D|$)`),
		regexp.MustCompile(`(?:^|\D)(\d{2,4}[-/]\d{1,2}[-/]\d{1,2})(?:\D|$)`),
	}

	// [:\s]* may cross a newline after the label, the name itself may not
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bpatient(?:[ \t]+name)?[:\s]*([A-Za-z][A-Za-z \t]*)`),
		regexp.MustCompile(`(?i)\bname[:\s]*([A-Za-z][A-Za-z \t]*)`),
	}
)

// nameStopWords are report labels that commonly follow a name on the same line
var nameStopWords = map[string]bool{
	"bp": true, "blood": true, "pressure": true, "glucose": true, "sugar": true,
	"fasting": true, "date": true, "dob": true, "age": true, "sex": true,
	"gender": true, "mrn": true, "id": true, "phone": true, "tel": true,
	"address": true, "doctor": true, "physician": true,
}

// Extract applies every field rule to text and returns the fields found
func Extract(text string) map[string]string {
	fields := make(map[string]string, len(Fields))
	if strings.TrimSpace(text) == "" {
		return fields
	}

	if m := bloodPressurePattern.FindStringSubmatch(text); m != nil {
		fields[FieldBloodPressure] = m[1] + "/" + m[2]
	}

	for _, p := range glucosePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			fields[FieldGlucose] = m[1] + " mg/dL"
			break
		}
	}

	for _, p := range datePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			fields[FieldDate] = m[1]
			break
		}
	}

	for _, p := range namePatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if name, ok := cleanName(m[1]); ok {
			fields[FieldPatientName] = name
		}
		break
	}

	return fields
}

// cleanName cuts the candidate at the first label word, title-cases it and
// checks its length
func cleanName(candidate string) (string, bool) {
	words := strings.Fields(candidate)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if nameStopWords[strings.ToLower(w)] {
			break
		}
		kept = append(kept, titleWord(w))
	}
	name := strings.Join(kept, " ")
	if len(name) <= minNameLen || len(name) >= maxNameLen {
		return "", false
	}
	return name, true
}

func titleWord(w string) string {
	lower := strings.ToLower(w)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
