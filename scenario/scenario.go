// Package scenario - acceptance-strategy selection and scenario tagging
// for filtered face candidates.
package scenario

// Scenario is the coarse bucket of subject count derived from the final
// detections.
type Scenario string

const (
	// ScenarioNoFaces tags an empty result.
	ScenarioNoFaces Scenario = "no_faces"
	// ScenarioSinglePerson tags exactly one face.
	ScenarioSinglePerson Scenario = "single_person"
	// ScenarioPair tags exactly two faces.
	ScenarioPair Scenario = "pair"
	// ScenarioSmallGroup tags three to five faces.
	ScenarioSmallGroup Scenario = "small_group"
	// ScenarioLargeGroup tags six to fifteen faces.
	ScenarioLargeGroup Scenario = "large_group"
	// ScenarioCrowd tags more than fifteen faces.
	ScenarioCrowd Scenario = "crowd"
)

// Classify maps a final face count to its scenario tag. Pure function of
// the count; the bands are fixed.
func Classify(count int) Scenario {
	switch {
	case count <= 0:
		return ScenarioNoFaces
	case count == 1:
		return ScenarioSinglePerson
	case count == 2:
		return ScenarioPair
	case count <= 5:
		return ScenarioSmallGroup
	case count <= 15:
		return ScenarioLargeGroup
	default:
		return ScenarioCrowd
	}
}
