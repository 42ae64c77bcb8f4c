package conversion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelsmith/cardstore/internal/conversion/modeldata"
	"github.com/modelsmith/cardstore/internal/conversion/schema"
)

func newPyTorchConverter(t *testing.T, iface *ModelInterface, set *ExporterSet) *PyTorchConverter {
	t.Helper()
	data, err := modeldata.New(iface.SampleData)
	require.NoError(t, err)
	return &PyTorchConverter{baseConverter: baseConverter{
		iface:     iface,
		data:      data,
		registry:  NewRegistry(),
		exporters: set,
	}}
}

func TestTorchArgBuilderFromMapping(t *testing.T) {
	set, _ := exporterSetWith(FrameworkTorch)
	iface := &ModelInterface{
		ModelClass: PyTorch,
		ModelType:  "TransformerModel",
		SampleData: map[string]*modeldata.NDArray{
			"attention_mask": {Dtype: schema.DtypeInt64, Shape: []int64{1, 128}, Values: make([]float64, 128)},
			"input_ids":      {Dtype: schema.DtypeInt64, Shape: []int64{1, 128}, Values: make([]float64, 128)},
		},
	}
	c := newPyTorchConverter(t, iface, set)

	args := c.torchArgs()
	assert.Equal(t, []string{"attention_mask", "input_ids"}, args.InputNames)
	assert.Equal(t, []string{"output"}, args.OutputNames)
	assert.True(t, args.DoConstantFolding)
	assert.True(t, args.ExportParams)
}

func TestTorchArgBuilderFromArray(t *testing.T) {
	set, _ := exporterSetWith(FrameworkTorch)
	iface := &ModelInterface{
		ModelClass: PyTorch,
		ModelType:  "ConvNet",
		SampleData: &modeldata.NDArray{Dtype: schema.DtypeFloat32, Shape: []int64{1, 3, 28, 28}, Values: make([]float64, 3*28*28)},
	}
	c := newPyTorchConverter(t, iface, set)

	args := c.torchArgs()
	assert.Equal(t, []string{"predict"}, args.InputNames)
	assert.Equal(t, []string{"output"}, args.OutputNames)
}

func TestTorchCallerArgsPreferred(t *testing.T) {
	set, _ := exporterSetWith(FrameworkTorch)
	supplied := &TorchOnnxArgs{InputNames: []string{"tokens"}, OutputNames: []string{"logits"}}
	iface := &ModelInterface{
		ModelClass: PyTorch,
		ModelType:  "TransformerModel",
		SampleData: float64Sample(1, 4),
		OnnxArgs:   supplied,
	}
	c := newPyTorchConverter(t, iface, set)

	assert.Same(t, supplied, c.torchArgs())
}

func TestTorchDataTypesBackfillsArgs(t *testing.T) {
	set, _ := exporterSetWith(FrameworkTorch)
	iface := &ModelInterface{
		ModelClass: PyTorch,
		ModelType:  "ConvNet",
		SampleData: float64Sample(1, 4),
	}
	c := newPyTorchConverter(t, iface, set)

	require.Nil(t, iface.OnnxArgs)
	_, err := c.DataTypes()
	require.NoError(t, err)
	require.NotNil(t, iface.OnnxArgs)
	assert.Equal(t, []string{"predict"}, iface.OnnxArgs.InputNames)
}

func TestTorchConvertModelRoundTrip(t *testing.T) {
	set, fake := exporterSetWith(FrameworkTorch)
	iface := &ModelInterface{
		Model:      EstimatorSpec{ClassName: "ConvNet"},
		ModelClass: PyTorch,
		ModelType:  "ConvNet",
		SampleData: float64Sample(1, 4),
	}
	c := newPyTorchConverter(t, iface, set)

	initialTypes, err := c.DataTypes()
	require.NoError(t, err)
	model, err := c.ConvertModel(context.Background(), initialTypes)
	require.NoError(t, err)
	require.NotNil(t, model)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.True(t, req.EvalMode)
	require.NotNil(t, req.TorchArgs)
	assert.Equal(t, []string{"predict"}, req.TorchArgs.InputNames)
	assert.Equal(t, []string{"output"}, req.TorchArgs.OutputNames)
}

func TestTorchConvertModelRejectsUnsignedArtifact(t *testing.T) {
	set, fake := exporterSetWith(FrameworkTorch)
	fake.payload = []byte("not an envelope")

	iface := &ModelInterface{
		Model:      EstimatorSpec{ClassName: "ConvNet"},
		ModelClass: PyTorch,
		ModelType:  "ConvNet",
		SampleData: float64Sample(1, 4),
	}
	c := newPyTorchConverter(t, iface, set)

	initialTypes, err := c.DataTypes()
	require.NoError(t, err)
	_, err = c.ConvertModel(context.Background(), initialTypes)
	assert.ErrorIs(t, err, ErrConversionFailure)
}
