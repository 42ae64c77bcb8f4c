package conversion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/modelsmith/cardstore/internal/conversion/portable"
)

func validateTensorFlowKeras(modelClass string) bool {
	return modelClass == TFKeras
}

// TensorFlowKerasConverter converts keras models with a direct single-call
// conversion.
type TensorFlowKerasConverter struct {
	baseConverter
}

func (c *TensorFlowKerasConverter) DataTypes() ([]TypeDecl, error) {
	if _, err := c.exporters.Get(FrameworkKeras); err != nil {
		return nil, err
	}
	return c.initialTypes(), nil
}

// unwrapTuple handles backends that return a tuple of (model, external
// tensor storage); only the first element is the model.
func unwrapTuple(payload []byte) ([]byte, error) {
	if len(payload) == 0 || payload[0] != '[' {
		return payload, nil
	}
	var elements []string
	if err := json.Unmarshal(payload, &elements); err != nil {
		return nil, fmt.Errorf("decoding tuple result: %w", err)
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("decoding tuple result: empty tuple")
	}
	decoded, err := base64.StdEncoding.DecodeString(elements[0])
	if err != nil {
		return nil, fmt.Errorf("decoding tuple result: %w", err)
	}
	return decoded, nil
}

func (c *TensorFlowKerasConverter) ConvertModel(ctx context.Context, initialTypes []TypeDecl) (*portable.Model, error) {
	exporter, err := c.exporters.Get(FrameworkKeras)
	if err != nil {
		return nil, err
	}

	payload, err := exporter.Export(ctx, ExportRequest{
		ModelClass:   c.modelClass(),
		ModelType:    c.modelType(),
		Estimator:    c.iface.Model,
		InitialTypes: initialTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}

	payload, err = unwrapTuple(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}

	model, err := portable.Load(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	return model, nil
}
