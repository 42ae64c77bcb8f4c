package conversion

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelsmith/cardstore/internal/conversion/modeldata"
	"github.com/modelsmith/cardstore/internal/conversion/portable"
	"github.com/rs/zerolog/log"
)

func validateSklearn(modelClass string) bool {
	for _, supported := range SklearnSupportedModelTypes {
		if modelClass == supported {
			return true
		}
	}
	return false
}

// SklearnConverter converts sklearn estimators, including pipeline, stacking
// and calibrated-classifier composites. Composite structures are traversed
// before conversion so the conversion registry is patched for every nested
// estimator type that is not natively supported.
type SklearnConverter struct {
	baseConverter
	patched []string
}

func (c *SklearnConverter) isStackingEstimator() bool {
	return c.modelType() == StackingRegressor || c.modelType() == StackingClassifier
}

func (c *SklearnConverter) isCalibratedClassifier() bool {
	return c.modelType() == CalibratedClassifier
}

func (c *SklearnConverter) isPipeline() bool {
	return c.modelType() == SklearnPipeline
}

func needsRegistryPatch(estimatorType string) bool {
	name := strings.ToLower(estimatorType)
	for _, patchable := range UpdateRegistryModels {
		if name == patchable {
			return true
		}
	}
	return false
}

func (c *SklearnConverter) patchEstimator(estimatorType string) {
	name := strings.ToLower(estimatorType)
	c.registry.Register(name)
	c.patched = append(c.patched, name)
}

func (c *SklearnConverter) updateRegistriesPipeline() bool {
	updated := false
	for _, step := range c.iface.Model.Steps {
		if strings.EqualFold(step.ClassName, CalibratedClassifier) {
			if c.updateRegistriesCalibratedClassifier(step.Estimator) {
				updated = true
			}
			continue
		}
		if needsRegistryPatch(step.ClassName) {
			c.patchEstimator(step.ClassName)
			updated = true
		}
	}
	return updated
}

func (c *SklearnConverter) updateRegistriesStacking() bool {
	updated := false
	estimators := append([]EstimatorSpec{}, c.iface.Model.Estimators...)
	if c.iface.Model.FinalEstimator != nil {
		estimators = append(estimators, *c.iface.Model.FinalEstimator)
	}
	for _, estimator := range estimators {
		if needsRegistryPatch(estimator.ClassName) {
			c.patchEstimator(estimator.ClassName)
			updated = true
		}
	}
	return updated
}

func (c *SklearnConverter) updateRegistriesCalibratedClassifier(estimator *EstimatorSpec) bool {
	if estimator == nil {
		estimator = c.iface.Model.Estimator
	}
	if estimator == nil {
		return false
	}
	if needsRegistryPatch(estimator.ClassName) {
		c.patchEstimator(estimator.ClassName)
		return true
	}
	return false
}

// updateRegistries patches the conversion registry according to the model's
// composite structure.
func (c *SklearnConverter) updateRegistries() bool {
	if c.isPipeline() {
		return c.updateRegistriesPipeline()
	}
	if c.isStackingEstimator() {
		return c.updateRegistriesStacking()
	}
	if c.isCalibratedClassifier() {
		return c.updateRegistriesCalibratedClassifier(nil)
	}
	if needsRegistryPatch(c.modelType()) {
		c.patchEstimator(c.modelType())
		return true
	}
	return false
}

// convertData coerces sample data to float32. Stacking and pipeline
// estimators have intermediate output nodes for which the conversion
// toolchain injects float32, and some classifiers reject float64 entirely,
// so float64 is always converted.
func (c *SklearnConverter) convertData() {
	switch {
	case c.data.AllFeaturesFloat32():
		// nothing to do
	case c.isStackingEstimator():
		log.Warn().Msg("Converting all numeric data to float32 for sklearn stacking")
		modeldata.FloatTypeConverter{ConvertAll: true}.ConvertToFloat(c.data)
	case !c.isPipeline() && c.data.NumDtypes() > 1:
		modeldata.FloatTypeConverter{ConvertAll: true}.ConvertToFloat(c.data)
	default:
		log.Warn().Msg("Converting all float64 data to float32")
		modeldata.FloatTypeConverter{ConvertAll: false}.ConvertToFloat(c.data)
	}
}

// DataTypes updates the conversion registries, applies the float32 coercion
// policy and derives the initial type declarations.
func (c *SklearnConverter) DataTypes() ([]TypeDecl, error) {
	if _, err := c.exporters.Get(FrameworkSklearn); err != nil {
		return nil, err
	}
	c.updateRegistries()
	c.convertData()
	return c.initialTypes(), nil
}

// options returns the conversion options. Classifier conversions default to
// array output (zipmap disabled), which the hosting inference engine requires.
func (c *SklearnConverter) options() map[string]interface{} {
	if c.iface.OnnxArgs != nil && c.iface.OnnxArgs.Options != nil {
		return c.iface.OnnxArgs.Options
	}
	if c.iface.Model.Classifier {
		return map[string]interface{}{"zipmap": false}
	}
	return nil
}

func zipmapUnsupported(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "option 'zipmap' not in")
}

// ConvertModel invokes the sklearn conversion routine. A small number of
// classifiers do not accept the zipmap option at all (e.g. LinearSVC); on
// that specific failure the conversion is retried once without options.
func (c *SklearnConverter) ConvertModel(ctx context.Context, initialTypes []TypeDecl) (*portable.Model, error) {
	exporter, err := c.exporters.Get(FrameworkSklearn)
	if err != nil {
		return nil, err
	}

	req := ExportRequest{
		ModelClass:      c.modelClass(),
		ModelType:       c.modelType(),
		Estimator:       c.iface.Model,
		InitialTypes:    initialTypes,
		Options:         c.options(),
		PatchEstimators: c.patched,
	}
	payload, err := exporter.Export(ctx, req)
	if err != nil && req.Options != nil && zipmapUnsupported(err) {
		log.Info().Msg("Zipmap not supported for classifier")
		req.Options = nil
		payload, err = exporter.Export(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}

	model, err := portable.Load(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailure, err)
	}
	return model, nil
}
