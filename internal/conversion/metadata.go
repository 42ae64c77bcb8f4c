package conversion

import (
	"fmt"

	"github.com/modelsmith/cardstore/internal/conversion/modeldata"
	"github.com/modelsmith/cardstore/internal/conversion/portable"
	"github.com/modelsmith/cardstore/internal/conversion/schema"
)

// MetadataCreator assembles a model's logical data schema from its sample
// data, independent of conversion.
type MetadataCreator struct {
	iface *ModelInterface
}

func NewMetadataCreator(iface *ModelInterface) *MetadataCreator {
	return &MetadataCreator{iface: iface}
}

// inputSchema builds features from the pre-conversion sample. Shapes use a
// unit leading dimension since the sample represents a single logical row.
func (m *MetadataCreator) inputSchema(data *modeldata.ModelData) map[string]schema.Feature {
	features := make(map[string]schema.Feature)
	switch data.DataType() {
	case modeldata.DataTypeNDArray:
		arr := data.Arr()
		shape := []int64{1}
		if len(arr.Shape) > 1 {
			shape = append(shape, arr.Shape[1:]...)
		}
		features["inputs"] = schema.NewFeature(arr.Dtype, shape)
	case modeldata.DataTypeDictionary:
		for name, arr := range data.Mapping() {
			shape := []int64{1}
			if len(arr.Shape) > 1 {
				shape = append(shape, arr.Shape[1:]...)
			}
			features[name] = schema.NewFeature(arr.Dtype, shape)
		}
	default:
		for _, col := range data.Table().Columns {
			features[col.Name] = schema.NewFeature(col.Dtype, []int64{1, 1})
		}
	}
	return features
}

// outputSchema builds output features from the sample prediction, falling
// back to a string placeholder when none was supplied.
func (m *MetadataCreator) outputSchema() map[string]schema.Feature {
	pred := m.iface.SamplePrediction
	if pred == nil {
		return map[string]schema.Feature{
			"placeholder": schema.NewFeature(schema.DtypeString, []int64{1}),
		}
	}
	shape := []int64{1}
	if len(pred.Shape) > 1 {
		shape = append(shape, pred.Shape[1:]...)
	}
	return map[string]schema.Feature{
		"outputs": schema.NewFeature(pred.Dtype, shape),
	}
}

// GetModelMetadata builds a metadata-only result for models that skip
// conversion entirely.
func (m *MetadataCreator) GetModelMetadata() (*ModelReturn, error) {
	data, err := modeldata.New(m.iface.SampleData)
	if err != nil {
		return nil, err
	}
	return &ModelReturn{
		DataSchema: schema.DataSchema{
			DataType:       data.DataType(),
			InputFeatures:  m.inputSchema(data),
			OutputFeatures: m.outputSchema(),
		},
	}, nil
}

// GetOnnxMetadata extracts metadata for a model whose conversion was
// performed by an external system; the supplied portable model's session
// provides the onnx-side schema.
func GetOnnxMetadata(iface *ModelInterface, model *portable.Model) (*ModelReturn, error) {
	ret, err := NewMetadataCreator(iface).GetModelMetadata()
	if err != nil {
		return nil, err
	}

	sess, err := portable.NewSession(model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaExtraction, err)
	}
	onnxInputs, onnxOutputs := createFeatureMaps(sess)
	ret.OnnxModel = model
	ret.DataSchema.OnnxInputFeatures = onnxInputs
	ret.DataSchema.OnnxOutputFeatures = onnxOutputs
	ret.DataSchema.OnnxVersion = model.Header.FormatVersion
	return ret, nil
}

// CreateMetadata decorates a conversion result with model-level identifying
// fields.
func CreateMetadata(name, repository, version, modelURI, onnxURI string, iface *ModelInterface, ret *ModelReturn) ModelMetadata {
	meta := ModelMetadata{
		ModelName:      name,
		ModelClass:     iface.ModelClass,
		ModelType:      iface.ModelType,
		ModelInterface: iface.InterfaceName,
		ModelURI:       modelURI,
		ModelVersion:   version,
		Repository:     repository,
		DataSchema:     ret.DataSchema,
	}
	if ret.OnnxModel != nil {
		meta.OnnxURI = onnxURI
		meta.OnnxVersion = ret.OnnxModel.Header.FormatVersion
	}
	return meta
}
