package schema

// AnyDim marks a dynamic axis (batch dimension) in a tensor shape. Symbolic
// dimensions reported by an inference session are preserved as AnyDim rather
// than resolved to concrete integers.
const AnyDim int64 = -1

// Element types understood by the conversion pipeline.
const (
	DtypeString  = "string"
	DtypeInt32   = "int32"
	DtypeInt64   = "int64"
	DtypeFloat16 = "float16"
	DtypeFloat32 = "float32"
	DtypeFloat64 = "float64"
)

// Feature describes a named tensor's element type and shape.
// Immutable once created.
type Feature struct {
	FeatureType string  `json:"feature_type"`
	Shape       []int64 `json:"shape"`
}

func NewFeature(featureType string, shape []int64) Feature {
	s := make([]int64, len(shape))
	copy(s, shape)
	return Feature{FeatureType: featureType, Shape: s}
}

// DataSchema holds the logical (pre-conversion) feature schema alongside the
// schema derived from the portable model's inference session. The Onnx* maps
// always match the names bound in the session; InputFeatures/OutputFeatures
// and DataType are backfilled from the original sample data so API consumers
// see the logical feature names rather than the converter's internal naming.
type DataSchema struct {
	DataType           string             `json:"data_type,omitempty"`
	InputFeatures      map[string]Feature `json:"input_features,omitempty"`
	OutputFeatures     map[string]Feature `json:"output_features,omitempty"`
	OnnxInputFeatures  map[string]Feature `json:"onnx_input_features,omitempty"`
	OnnxOutputFeatures map[string]Feature `json:"onnx_output_features,omitempty"`
	OnnxVersion        string             `json:"onnx_version,omitempty"`
	OnnxDataType       string             `json:"onnx_data_type,omitempty"`
}
