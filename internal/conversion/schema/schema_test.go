package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFeatureCopiesShape(t *testing.T) {
	shape := []int64{AnyDim, 3}
	feature := NewFeature(DtypeFloat32, shape)

	shape[1] = 99
	assert.Equal(t, []int64{AnyDim, 3}, feature.Shape)
	assert.Equal(t, DtypeFloat32, feature.FeatureType)
}
