// Package domain defines the neuroimaging resource model: object handles,
// attribute sets, attachments, functional data indexes, model runs, and the
// persistence contract shared by all storage backends.
package domain

// ResourceType identifies the kind of a stored resource. The set is closed;
// each type maps to its own persistence collection.
type ResourceType string

const (
	TypeSubject            ResourceType = "subject"
	TypeImageGroup         ResourceType = "image_group"
	TypeImage              ResourceType = "image"
	TypeFunctionalData     ResourceType = "functional_data"
	TypeModel              ResourceType = "model"
	TypeModelRun           ResourceType = "model_run"
	TypePredictionResult   ResourceType = "prediction_result"
	TypePredictionImageSet ResourceType = "prediction_image_set"
)

var collections = map[ResourceType]string{
	TypeSubject:            "subjects",
	TypeImageGroup:         "image_groups",
	TypeImage:              "images",
	TypeFunctionalData:     "functional_data",
	TypeModel:              "models",
	TypeModelRun:           "model_runs",
	TypePredictionResult:   "prediction_results",
	TypePredictionImageSet: "prediction_image_sets",
}

// Valid reports whether t is one of the known resource types.
func (t ResourceType) Valid() bool {
	_, ok := collections[t]
	return ok
}

// Collection returns the persistence collection name for the type.
func (t ResourceType) Collection() string { return collections[t] }

// ResourceTypes returns all known resource types in stable order.
func ResourceTypes() []ResourceType {
	return []ResourceType{
		TypeSubject,
		TypeImageGroup,
		TypeImage,
		TypeFunctionalData,
		TypeModel,
		TypeModelRun,
		TypePredictionResult,
		TypePredictionImageSet,
	}
}
