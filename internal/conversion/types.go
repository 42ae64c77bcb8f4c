package conversion

import (
	"github.com/modelsmith/cardstore/internal/conversion/modeldata"
	"github.com/modelsmith/cardstore/internal/conversion/portable"
	"github.com/modelsmith/cardstore/internal/conversion/schema"
)

// Trained model class names as reported by client SDKs.
const (
	SklearnPipeline      = "Pipeline"
	SklearnEstimator     = "SklearnEstimator"
	StackingRegressor    = "StackingRegressor"
	StackingClassifier   = "StackingClassifier"
	CalibratedClassifier = "CalibratedClassifierCV"
	LGBMRegressor        = "LGBMRegressor"
	LGBMClassifier       = "LGBMClassifier"
	XGBRegressor         = "XGBRegressor"
	XGBClassifier        = "XGBClassifier"
	LGBMBooster          = "Booster"
	TFKeras              = "keras"
	PyTorch              = "pytorch"
)

// SklearnSupportedModelTypes lists the model classes handled by the sklearn
// converter.
var SklearnSupportedModelTypes = []string{
	SklearnEstimator,
	StackingRegressor,
	StackingClassifier,
	SklearnPipeline,
	LGBMRegressor,
	LGBMClassifier,
	XGBRegressor,
	CalibratedClassifier,
}

// LightGBMSupportedModelTypes lists the model classes handled by the LightGBM
// booster converter.
var LightGBMSupportedModelTypes = []string{
	LGBMBooster,
}

// UpdateRegistryModels lists the estimator types whose converters are not
// natively registered and need conversion-registry patching. Names are stored
// lowercased, matching the estimator class names reported inside composite
// models.
var UpdateRegistryModels = []string{
	"lgbmclassifier",
	"lgbmregressor",
	"xgbregressor",
}

// EstimatorSpec is a structured descriptor of a trained estimator, as
// serialized by the client SDK. Composite sklearn structures keep their nested
// estimators so registry patching can traverse them.
type EstimatorSpec struct {
	ClassName      string          `json:"class_name"`
	Classifier     bool            `json:"classifier,omitempty"`
	Steps          []EstimatorSpec `json:"steps,omitempty"`
	Estimators     []EstimatorSpec `json:"estimators,omitempty"`
	FinalEstimator *EstimatorSpec  `json:"final_estimator,omitempty"`
	Estimator      *EstimatorSpec  `json:"estimator,omitempty"`
}

// TorchOnnxArgs are the pytorch-specific export arguments. When not supplied
// by the caller they are auto-derived from the sample-data structure.
type TorchOnnxArgs struct {
	InputNames        []string                    `json:"input_names"`
	OutputNames       []string                    `json:"output_names"`
	DynamicAxes       map[string]map[int64]string `json:"dynamic_axes,omitempty"`
	DoConstantFolding bool                        `json:"do_constant_folding"`
	ExportParams      bool                        `json:"export_params"`
	Verbose           bool                        `json:"verbose"`
	Options           map[string]interface{}      `json:"options,omitempty"`
}

// ModelInterface carries everything a conversion needs: the structured model
// descriptor, its class and type names, the sample input data and optional
// framework args. OnnxModel, when set, is a pre-existing portable model and
// conversion is skipped in favor of loading it directly.
type ModelInterface struct {
	Model            EstimatorSpec
	ModelClass       string
	ModelType        string
	InterfaceName    string
	SampleData       interface{}
	SamplePrediction *modeldata.NDArray
	OnnxArgs         *TorchOnnxArgs
	OnnxModel        []byte
}

// ModelReturn is the terminal result of a conversion: the portable model (nil
// on the metadata-only path) and the assembled data schema.
type ModelReturn struct {
	OnnxModel  *portable.Model
	DataSchema schema.DataSchema
}

// ModelMetadata decorates a conversion result with model-level identifying
// fields independent of conversion.
type ModelMetadata struct {
	ModelName      string            `json:"model_name"`
	ModelClass     string            `json:"model_class"`
	ModelType      string            `json:"model_type"`
	ModelInterface string            `json:"model_interface"`
	OnnxURI        string            `json:"onnx_uri,omitempty"`
	OnnxVersion    string            `json:"onnx_version,omitempty"`
	ModelURI       string            `json:"model_uri"`
	ModelVersion   string            `json:"model_version"`
	Repository     string            `json:"repository"`
	DataSchema     schema.DataSchema `json:"data_schema"`
}
