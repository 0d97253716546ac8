package processor

import (
	"github.com/adverant/nexus/medocr-worker/internal/extraction"
)

const (
	mockConfidence     = 0.85
	mockProcessingTime = 0.5
	mockText           = "Mock OCR Result: This is a sample medical report. Patient: John Doe. " +
		"Blood Pressure: 120/80. Glucose: 95 mg/dL. Date: 2024-01-15."
)

// MockResult is the placeholder served while no OCR engine is available.
// It never depends on the input file; callers should surface Mock to users.
func MockResult() *DocumentResult {
	return &DocumentResult{
		Success:       true,
		ExtractedText: mockText,
		StructuredData: map[string]string{
			extraction.FieldPatientName:   "John Doe",
			extraction.FieldBloodPressure: "120/80",
			extraction.FieldGlucose:       "95 mg/dL",
			extraction.FieldDate:          "2024-01-15",
		},
		Confidence:     mockConfidence,
		ProcessingTime: mockProcessingTime,
		Mock:           true,
	}
}
