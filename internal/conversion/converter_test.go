package conversion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelsmith/cardstore/internal/conversion/modeldata"
	"github.com/modelsmith/cardstore/internal/conversion/portable"
	"github.com/modelsmith/cardstore/internal/conversion/schema"
)

// fakeExporter echoes the requested initial types back as the declared input
// signatures of a well-formed envelope, plus a single float32 output. Failures
// can be injected per call.
type fakeExporter struct {
	requests []ExportRequest
	failures []error
	payload  []byte
}

func (f *fakeExporter) Export(_ context.Context, req ExportRequest) ([]byte, error) {
	f.requests = append(f.requests, req)
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.payload != nil {
		return f.payload, nil
	}
	inputs := make([]portable.TensorInfo, 0, len(req.InitialTypes))
	for _, decl := range req.InitialTypes {
		inputs = append(inputs, portable.TensorInfo{Name: decl.Name, Dtype: decl.Dtype, Shape: decl.Shape})
	}
	return portable.Encode(portable.Header{
		Producer:  "test-backend",
		Framework: req.ModelClass,
		Inputs:    inputs,
		Outputs:   []portable.TensorInfo{{Name: "variable", Dtype: schema.DtypeFloat32, Shape: []int64{schema.AnyDim, 1}}},
	}, []byte("graph"))
}

func exporterSetWith(frameworks ...string) (*ExporterSet, *fakeExporter) {
	fake := &fakeExporter{}
	set := NewExporterSet()
	for _, framework := range frameworks {
		set.Set(framework, fake)
	}
	return set, fake
}

func float64Sample(rows, cols int64) *modeldata.NDArray {
	values := make([]float64, rows*cols)
	for i := range values {
		values[i] = float64(i) + 0.5
	}
	return &modeldata.NDArray{Dtype: schema.DtypeFloat64, Shape: []int64{rows, cols}, Values: values}
}

func TestSelectEntry(t *testing.T) {
	tests := []struct {
		name       string
		modelClass string
		framework  string
		expectErr  bool
	}{
		{name: "sklearn estimator", modelClass: SklearnEstimator, framework: FrameworkSklearn},
		{name: "sklearn pipeline", modelClass: SklearnPipeline, framework: FrameworkSklearn},
		{name: "stacking classifier", modelClass: StackingClassifier, framework: FrameworkSklearn},
		{name: "calibrated classifier", modelClass: CalibratedClassifier, framework: FrameworkSklearn},
		{name: "lgbm sklearn api", modelClass: LGBMRegressor, framework: FrameworkSklearn},
		{name: "raw booster", modelClass: LGBMBooster, framework: FrameworkLightGBM},
		{name: "keras", modelClass: TFKeras, framework: FrameworkKeras},
		{name: "pytorch", modelClass: PyTorch, framework: FrameworkTorch},
		{name: "unknown class", modelClass: "RandomForestFromMars", expectErr: true},
		{name: "empty class", modelClass: "", expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := selectEntry(tt.modelClass)
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrUnsupportedModelType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.framework, entry.name)
		})
	}
}

func TestSelectEntryExactlyOneMatch(t *testing.T) {
	classes := []string{
		SklearnEstimator, SklearnPipeline, StackingRegressor, StackingClassifier,
		CalibratedClassifier, LGBMRegressor, LGBMClassifier, XGBRegressor,
		LGBMBooster, TFKeras, PyTorch,
	}
	for _, class := range classes {
		matches := 0
		for _, entry := range converterTable {
			if entry.validate(class) {
				matches++
			}
		}
		assert.Equalf(t, 1, matches, "class %s must match exactly one converter", class)
	}
}

func TestShouldConvert(t *testing.T) {
	assert.True(t, ShouldConvert(true))
	assert.False(t, ShouldConvert(false))
}

func TestConvertSklearnRoundTrip(t *testing.T) {
	set, fake := exporterSetWith(FrameworkSklearn)
	converter := NewOnnxConverter(NewRegistry(), set)

	iface := &ModelInterface{
		Model:            EstimatorSpec{ClassName: "LinearRegression"},
		ModelClass:       SklearnEstimator,
		ModelType:        "LinearRegression",
		InterfaceName:    "SklearnModel",
		SampleData:       float64Sample(2, 3),
		SamplePrediction: &modeldata.NDArray{Dtype: schema.DtypeFloat64, Shape: []int64{2, 1}, Values: []float64{1, 2}},
	}

	ret, err := converter.Convert(context.Background(), iface)
	require.NoError(t, err)
	require.NotNil(t, ret.OnnxModel)
	require.Len(t, fake.requests, 1)

	// float64 samples are coerced before the type declarations are derived
	input, ok := ret.DataSchema.OnnxInputFeatures["predict"]
	require.True(t, ok)
	assert.Equal(t, schema.DtypeFloat32, input.FeatureType)
	assert.Equal(t, []int64{schema.AnyDim, 3}, input.Shape)

	output, ok := ret.DataSchema.OnnxOutputFeatures["variable"]
	require.True(t, ok)
	assert.Equal(t, schema.DtypeFloat32, output.FeatureType)
	assert.Equal(t, []int64{schema.AnyDim, 1}, output.Shape)

	// logical schema reflects the original sample layout
	assert.Equal(t, modeldata.DataTypeNDArray, ret.DataSchema.DataType)
	logical, ok := ret.DataSchema.InputFeatures["inputs"]
	require.True(t, ok)
	assert.Equal(t, []int64{1, 3}, logical.Shape)
	prediction, ok := ret.DataSchema.OutputFeatures["outputs"]
	require.True(t, ok)
	assert.Equal(t, []int64{1, 1}, prediction.Shape)

	assert.Equal(t, portable.FormatVersion, ret.DataSchema.OnnxVersion)
}

func TestConvertPreSuppliedPortableModel(t *testing.T) {
	pre, err := portable.Encode(portable.Header{
		Producer: "external",
		Inputs:   []portable.TensorInfo{{Name: "x", Dtype: schema.DtypeFloat32, Shape: []int64{schema.AnyDim, 4}}},
		Outputs:  []portable.TensorInfo{{Name: "y", Dtype: schema.DtypeFloat32, Shape: []int64{schema.AnyDim, 1}}},
	}, []byte("external-graph"))
	require.NoError(t, err)

	set, fake := exporterSetWith(FrameworkSklearn)
	converter := NewOnnxConverter(NewRegistry(), set)

	iface := &ModelInterface{
		Model:      EstimatorSpec{ClassName: "LinearRegression"},
		ModelClass: SklearnEstimator,
		ModelType:  "LinearRegression",
		SampleData: float64Sample(1, 4),
		OnnxModel:  pre,
	}

	ret, err := converter.Convert(context.Background(), iface)
	require.NoError(t, err)
	// the supplied model is loaded directly, no backend call happens
	assert.Empty(t, fake.requests)
	assert.Equal(t, "external", ret.OnnxModel.Header.Producer)
	assert.Contains(t, ret.DataSchema.OnnxInputFeatures, "x")
}

func TestConvertUnsupportedModelClass(t *testing.T) {
	set, _ := exporterSetWith(FrameworkSklearn)
	converter := NewOnnxConverter(NewRegistry(), set)

	_, err := converter.Convert(context.Background(), &ModelInterface{
		ModelClass: "NotARealModel",
		SampleData: float64Sample(1, 2),
	})
	assert.ErrorIs(t, err, ErrUnsupportedModelType)
}

func TestConvertMissingExporter(t *testing.T) {
	converter := NewOnnxConverter(NewRegistry(), NewExporterSet())

	_, err := converter.Convert(context.Background(), &ModelInterface{
		Model:      EstimatorSpec{ClassName: "LinearRegression"},
		ModelClass: SklearnEstimator,
		ModelType:  "LinearRegression",
		SampleData: float64Sample(1, 2),
	})
	require.ErrorIs(t, err, ErrMissingDependency)
	assert.Contains(t, err.Error(), "skl2onnx")
}

func TestConvertUnsupportedSampleData(t *testing.T) {
	set, _ := exporterSetWith(FrameworkSklearn)
	converter := NewOnnxConverter(NewRegistry(), set)

	_, err := converter.Convert(context.Background(), &ModelInterface{
		ModelClass: SklearnEstimator,
		SampleData: "not a sample",
	})
	assert.ErrorIs(t, err, modeldata.ErrUnsupportedData)
}

func TestConvertSchemaExtractionFailure(t *testing.T) {
	// a well-formed envelope with no signatures loads fine but cannot back a
	// session
	payload, err := portable.Encode(portable.Header{Producer: "test-backend"}, []byte("graph"))
	require.NoError(t, err)

	set, fake := exporterSetWith(FrameworkSklearn)
	fake.payload = payload
	converter := NewOnnxConverter(NewRegistry(), set)

	_, err = converter.Convert(context.Background(), &ModelInterface{
		Model:      EstimatorSpec{ClassName: "LinearRegression"},
		ModelClass: SklearnEstimator,
		ModelType:  "LinearRegression",
		SampleData: float64Sample(1, 2),
	})
	assert.ErrorIs(t, err, ErrSchemaExtraction)
}

func TestInitialTypesPerContainer(t *testing.T) {
	tests := []struct {
		name     string
		sample   interface{}
		expected []TypeDecl
	}{
		{
			name:   "2d array gets single default input",
			sample: &modeldata.NDArray{Dtype: schema.DtypeFloat32, Shape: []int64{5, 3}, Values: make([]float64, 15)},
			expected: []TypeDecl{
				{Name: "predict", Dtype: schema.DtypeFloat32, Shape: []int64{schema.AnyDim, 3}},
			},
		},
		{
			name:   "1d array gets unit feature dim",
			sample: &modeldata.NDArray{Dtype: schema.DtypeFloat32, Shape: []int64{5}, Values: make([]float64, 5)},
			expected: []TypeDecl{
				{Name: "predict", Dtype: schema.DtypeFloat32, Shape: []int64{schema.AnyDim, 1}},
			},
		},
		{
			name: "mapping gets sorted per-key inputs",
			sample: map[string]*modeldata.NDArray{
				"b": {Dtype: schema.DtypeFloat32, Shape: []int64{1, 2}, Values: []float64{1, 2}},
				"a": {Dtype: schema.DtypeInt64, Shape: []int64{1}, Values: []float64{3}},
			},
			expected: []TypeDecl{
				{Name: "a", Dtype: schema.DtypeInt64, Shape: []int64{schema.AnyDim, 1}},
				{Name: "b", Dtype: schema.DtypeFloat32, Shape: []int64{schema.AnyDim, 2}},
			},
		},
		{
			name: "table gets one column per input",
			sample: &modeldata.Table{
				NumRows: 2,
				Columns: []modeldata.Column{
					{Name: "price", Dtype: schema.DtypeFloat32, Values: []float64{1, 2}},
					{Name: "qty", Dtype: schema.DtypeInt64, Values: []float64{3, 4}},
				},
			},
			expected: []TypeDecl{
				{Name: "price", Dtype: schema.DtypeFloat32, Shape: []int64{schema.AnyDim, 1}},
				{Name: "qty", Dtype: schema.DtypeInt64, Shape: []int64{schema.AnyDim, 1}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := modeldata.New(tt.sample)
			require.NoError(t, err)
			base := baseConverter{iface: &ModelInterface{}, data: data}
			assert.Equal(t, tt.expected, base.initialTypes())
		})
	}
}
