package conversion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelsmith/cardstore/internal/conversion/modeldata"
	"github.com/modelsmith/cardstore/internal/conversion/portable"
)

func validatePyTorch(modelClass string) bool {
	return modelClass == PyTorch
}

// torchArgBuilder derives export arguments from the sample-data structure
// when the caller did not supply them: dict keys become the input names,
// anything else gets a single default input, and outputs get a single
// default name.
type torchArgBuilder struct {
	data *modeldata.ModelData
}

func (b torchArgBuilder) inputNames() []string {
	if b.data.DataType() == modeldata.DataTypeDictionary {
		return b.data.Features()
	}
	return []string{"predict"}
}

func (b torchArgBuilder) outputNames() []string {
	return []string{"output"}
}

func (b torchArgBuilder) args() *TorchOnnxArgs {
	return &TorchOnnxArgs{
		InputNames:        b.inputNames(),
		OutputNames:       b.outputNames(),
		DoConstantFolding: true,
		ExportParams:      true,
	}
}

// PyTorchConverter exports pytorch models through the torch export routine:
// the trained model is put into evaluation mode, exported to a temporary
// artifact, structurally validated and loaded back into memory.
type PyTorchConverter struct {
	baseConverter
}

func (c *PyTorchConverter) torchArgs() *TorchOnnxArgs {
	if c.iface.OnnxArgs != nil {
		return c.iface.OnnxArgs
	}
	return torchArgBuilder{data: c.data}.args()
}

func (c *PyTorchConverter) DataTypes() ([]TypeDecl, error) {
	if _, err := c.exporters.Get(FrameworkTorch); err != nil {
		return nil, err
	}
	// backfill derived args so the caller sees what was exported
	c.iface.OnnxArgs = c.torchArgs()
	return c.initialTypes(), nil
}

func (c *PyTorchConverter) ConvertModel(ctx context.Context, initialTypes []TypeDecl) (*portable.Model, error) {
	exporter, err := c.exporters.Get(FrameworkTorch)
	if err != nil {
		return nil, err
	}

	args := c.torchArgs()
	payload, err := exporter.Export(ctx, ExportRequest{
		ModelClass:   c.modelClass(),
		ModelType:    c.modelType(),
		Estimator:    c.iface.Model,
		InitialTypes: initialTypes,
		TorchArgs:    args,
		EvalMode:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}

	tmpDir, err := os.MkdirTemp("", "torch-export")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	defer os.RemoveAll(tmpDir)

	filename := filepath.Join(tmpDir, "model.pmdl")
	if err := os.WriteFile(filename, payload, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	if err := portable.CheckModel(filename); err != nil {
		return nil, fmt.Errorf("%w: exported artifact failed validation: %v", ErrConversionFailure, err)
	}

	model, err := portable.LoadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	return model, nil
}
