package conversion

import (
	"context"
	"fmt"

	"github.com/modelsmith/cardstore/internal/conversion/portable"
)

func validateLightGBMBooster(modelClass string) bool {
	for _, supported := range LightGBMSupportedModelTypes {
		if modelClass == supported {
			return true
		}
	}
	return false
}

// LightGBMBoosterConverter converts raw LightGBM Booster models. Boosters
// trained through the sklearn API are handled by the sklearn converter
// instead. No registry patching and no float coercion is needed here.
type LightGBMBoosterConverter struct {
	baseConverter
}

func (c *LightGBMBoosterConverter) DataTypes() ([]TypeDecl, error) {
	if _, err := c.exporters.Get(FrameworkLightGBM); err != nil {
		return nil, err
	}
	return c.initialTypes(), nil
}

// ConvertModel performs a direct single-call conversion.
func (c *LightGBMBoosterConverter) ConvertModel(ctx context.Context, initialTypes []TypeDecl) (*portable.Model, error) {
	exporter, err := c.exporters.Get(FrameworkLightGBM)
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

	model, err := portable.Load(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	return model, nil
}
