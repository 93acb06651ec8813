package config

import "github.com/theirongolddev/qaid/internal/model"

// Minutes of manual work displaced by one generated artifact.
const (
	MinutesPerTestCase         = 8.0
	MinutesPerBugReport        = 15.0
	MinutesPerDocumentAnalysis = 30.0
)

// EstimateMinutesSaved returns the manual authoring time a generation
// replaces. Test cases scale with quantity; a bug report always counts once.
func EstimateMinutesSaved(kind model.Kind, quantity int) float64 {
	switch kind {
	case model.KindTestCaseGeneration:
		if quantity <= 0 {
			return 0
		}
		return float64(quantity) * MinutesPerTestCase
	case model.KindBugReportGeneration:
		return MinutesPerBugReport
	default:
		return 0
	}
}

// EstimateDocumentAnalysisMinutes returns the time a reviewer would spend
// reading source documents to derive test cases by hand.
func EstimateDocumentAnalysisMinutes(documents int) float64 {
	if documents <= 0 {
		return 0
	}
	return float64(documents) * MinutesPerDocumentAnalysis
}
