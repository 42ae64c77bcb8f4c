package conversion

import (
	"context"
	"fmt"
	"time"

	"github.com/modelsmith/cardstore/internal/conversion/modeldata"
	"github.com/modelsmith/cardstore/internal/conversion/portable"
	"github.com/modelsmith/cardstore/internal/conversion/schema"
	"github.com/modelsmith/cardstore/pkg/metric"
	"github.com/rs/zerolog/log"
)

// ModelConverter is the contract every framework converter implements.
// DataTypes produces the initial type declarations the conversion routine
// needs (and performs any framework-specific pre-conversion fixups);
// ConvertModel invokes the conversion routine itself.
type ModelConverter interface {
	DataTypes() ([]TypeDecl, error)
	ConvertModel(ctx context.Context, initialTypes []TypeDecl) (*portable.Model, error)
}

type converterEntry struct {
	name     string
	validate func(modelClass string) bool
	build    func(base baseConverter) ModelConverter
}

// converterTable is the dispatch table. Order is the documented priority:
// the sklearn converter owns the closed set of sklearn class names (including
// composite estimators), the booster converter matches only the raw Booster
// class, then keras and pytorch. The class-name sets are disjoint, so order
// never decides the outcome for a real model class.
var converterTable = []converterEntry{
	{
		name:     FrameworkSklearn,
		validate: validateSklearn,
		build:    func(b baseConverter) ModelConverter { return &SklearnConverter{baseConverter: b} },
	},
	{
		name:     FrameworkLightGBM,
		validate: validateLightGBMBooster,
		build:    func(b baseConverter) ModelConverter { return &LightGBMBoosterConverter{baseConverter: b} },
	},
	{
		name:     FrameworkKeras,
		validate: validateTensorFlowKeras,
		build:    func(b baseConverter) ModelConverter { return &TensorFlowKerasConverter{baseConverter: b} },
	},
	{
		name:     FrameworkTorch,
		validate: validatePyTorch,
		build:    func(b baseConverter) ModelConverter { return &PyTorchConverter{baseConverter: b} },
	},
}

func selectEntry(modelClass string) (converterEntry, error) {
	for _, entry := range converterTable {
		if entry.validate(modelClass) {
			return entry, nil
		}
	}
	return converterEntry{}, fmt.Errorf("%w: %q", ErrUnsupportedModelType, modelClass)
}

// baseConverter carries the state shared by all framework converters.
type baseConverter struct {
	iface     *ModelInterface
	data      *modeldata.ModelData
	registry  *Registry
	exporters *ExporterSet
}

func (b *baseConverter) modelClass() string {
	return b.iface.ModelClass
}

func (b *baseConverter) modelType() string {
	return b.iface.ModelType
}

// initialTypes derives per-input type declarations from the sample data:
// column names for tables, sorted keys for mappings, and a single default
// input for plain arrays. The leading (batch) dimension is always dynamic.
func (b *baseConverter) initialTypes() []TypeDecl {
	switch b.data.DataType() {
	case modeldata.DataTypeNDArray:
		arr := b.data.Arr()
		shape := []int64{schema.AnyDim}
		if len(arr.Shape) > 1 {
			shape = append(shape, arr.Shape[1:]...)
		} else {
			shape = append(shape, 1)
		}
		return []TypeDecl{{Name: "predict", Dtype: arr.Dtype, Shape: shape}}
	case modeldata.DataTypeDictionary:
		mapping := b.data.Mapping()
		decls := make([]TypeDecl, 0, len(mapping))
		for _, name := range b.data.Features() {
			arr := mapping[name]
			shape := []int64{schema.AnyDim}
			if len(arr.Shape) > 1 {
				shape = append(shape, arr.Shape[1:]...)
			} else {
				shape = append(shape, 1)
			}
			decls = append(decls, TypeDecl{Name: name, Dtype: arr.Dtype, Shape: shape})
		}
		return decls
	default:
		table := b.data.Table()
		decls := make([]TypeDecl, 0, len(table.Columns))
		for _, col := range table.Columns {
			decls = append(decls, TypeDecl{
				Name:  col.Name,
				Dtype: col.Dtype,
				Shape: []int64{schema.AnyDim, 1},
			})
		}
		return decls
	}
}

// parseSignature captures (name, element type, shape) for each declared
// signature entry. Symbolic dimensions are preserved as-is.
func parseSignature(infos []portable.TensorInfo) map[string]schema.Feature {
	features := make(map[string]schema.Feature, len(infos))
	for _, info := range infos {
		features[info.Name] = schema.NewFeature(info.Dtype, info.Shape)
	}
	return features
}

// createFeatureMaps extracts input and output feature maps from an inference
// session. Pure; called twice per conversion.
func createFeatureMaps(sess *portable.Session) (map[string]schema.Feature, map[string]schema.Feature) {
	return parseSignature(sess.Inputs()), parseSignature(sess.Outputs())
}

// ShouldConvert gates whether conversion should run at all for a
// registration request.
func ShouldConvert(toOnnx bool) bool {
	return toOnnx
}

// OnnxConverter drives the end-to-end conversion flow: converter dispatch,
// conversion (or direct load of a pre-supplied portable model), inference
// session construction, schema extraction and final assembly.
type OnnxConverter struct {
	registry  *Registry
	exporters *ExporterSet
}

func NewOnnxConverter(registry *Registry, exporters *ExporterSet) *OnnxConverter {
	return &OnnxConverter{
		registry:  registry,
		exporters: exporters,
	}
}

// Convert converts the supplied model to the portable inference format and
// assembles the resulting schema. Failures propagate uncaught; a failed
// conversion leaves no persisted state other than conversion-registry
// patching.
func (c *OnnxConverter) Convert(ctx context.Context, iface *ModelInterface) (*ModelReturn, error) {
	data, err := modeldata.New(iface.SampleData)
	if err != nil {
		return nil, err
	}

	entry, err := selectEntry(iface.ModelClass)
	if err != nil {
		return nil, err
	}
	converter := entry.build(baseConverter{
		iface:     iface,
		data:      data,
		registry:  c.registry,
		exporters: c.exporters,
	})

	initialTypes, err := converter.DataTypes()
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	model, err := c.portableModel(ctx, converter, iface, initialTypes)
	metricTags := metric.BuildTag(metric.NewTag(metric.TagModelClass, iface.ModelClass))
	metric.Incr(metric.ConversionCount, metricTags)
	metric.Timing(metric.ConversionLatency, time.Since(startTime), metricTags)
	if err != nil {
		return nil, err
	}

	sess, err := portable.NewSession(model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaExtraction, err)
	}
	onnxInputs, onnxOutputs := createFeatureMaps(sess)

	dataSchema := schema.DataSchema{
		OnnxInputFeatures:  onnxInputs,
		OnnxOutputFeatures: onnxOutputs,
		OnnxVersion:        model.Header.FormatVersion,
	}

	// Backfill the logical schema from the pre-conversion sample so API
	// consumers see the original feature names and types.
	meta := NewMetadataCreator(iface)
	dataSchema.InputFeatures = meta.inputSchema(data)
	dataSchema.OutputFeatures = meta.outputSchema()
	dataSchema.DataType = data.DataType()

	log.Info().
		Str("model_class", iface.ModelClass).
		Str("model_type", iface.ModelType).
		Int("inputs", len(onnxInputs)).
		Int("outputs", len(onnxOutputs)).
		Msg("Model converted to portable format")

	return &ModelReturn{OnnxModel: model, DataSchema: dataSchema}, nil
}

// portableModel runs the converter, or loads the caller-supplied portable
// model directly when conversion is performed by an external system.
func (c *OnnxConverter) portableModel(
	ctx context.Context,
	converter ModelConverter,
	iface *ModelInterface,
	initialTypes []TypeDecl,
) (*portable.Model, error) {
	if iface.OnnxModel != nil {
		model, err := portable.Load(iface.OnnxModel)
		if err != nil {
			return nil, fmt.Errorf("%w: loading supplied portable model: %v", ErrConversionFailure, err)
		}
		return model, nil
	}
	return converter.ConvertModel(ctx, initialTypes)
}
