package modeldata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelsmith/cardstore/internal/conversion/schema"
)

func TestNewContainers(t *testing.T) {
	tests := []struct {
		name      string
		data      interface{}
		dataType  string
		expectErr bool
	}{
		{
			name:     "array",
			data:     &NDArray{Dtype: schema.DtypeFloat32, Shape: []int64{2, 2}, Values: []float64{1, 2, 3, 4}},
			dataType: DataTypeNDArray,
		},
		{
			name:     "mapping",
			data:     map[string]*NDArray{"a": {Dtype: schema.DtypeFloat32, Shape: []int64{1}, Values: []float64{1}}},
			dataType: DataTypeDictionary,
		},
		{
			name:     "table",
			data:     &Table{NumRows: 1, Columns: []Column{{Name: "a", Dtype: schema.DtypeFloat32, Values: []float64{1}}}},
			dataType: DataTypeTable,
		},
		{name: "nil array", data: (*NDArray)(nil), expectErr: true},
		{name: "empty mapping", data: map[string]*NDArray{}, expectErr: true},
		{name: "empty table", data: &Table{}, expectErr: true},
		{name: "plain slice", data: []float64{1, 2}, expectErr: true},
		{name: "nil", data: nil, expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := New(tt.data)
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrUnsupportedData)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dataType, data.DataType())
		})
	}
}

func TestFeaturesDeterministicOrder(t *testing.T) {
	data, err := New(map[string]*NDArray{
		"zebra":  {Dtype: schema.DtypeFloat32, Shape: []int64{1}, Values: []float64{1}},
		"apple":  {Dtype: schema.DtypeFloat32, Shape: []int64{1}, Values: []float64{2}},
		"mango":  {Dtype: schema.DtypeFloat32, Shape: []int64{1}, Values: []float64{3}},
		"banana": {Dtype: schema.DtypeFloat32, Shape: []int64{1}, Values: []float64{4}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "banana", "mango", "zebra"}, data.Features())

	arr, err := New(&NDArray{Dtype: schema.DtypeFloat32, Shape: []int64{1}, Values: []float64{1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"inputs"}, arr.Features())

	table, err := New(&Table{NumRows: 1, Columns: []Column{
		{Name: "second", Dtype: schema.DtypeFloat32, Values: []float64{1}},
		{Name: "first", Dtype: schema.DtypeFloat32, Values: []float64{2}},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, table.Features())
}

func TestDtypeIntrospection(t *testing.T) {
	data, err := New(map[string]*NDArray{
		"a": {Dtype: schema.DtypeFloat64, Shape: []int64{1}, Values: []float64{1}},
		"b": {Dtype: schema.DtypeInt64, Shape: []int64{1}, Values: []float64{2}},
		"c": {Dtype: schema.DtypeFloat64, Shape: []int64{1}, Values: []float64{3}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{schema.DtypeFloat64, schema.DtypeInt64}, data.Dtypes())
	assert.Equal(t, 2, data.NumDtypes())
	assert.False(t, data.HomogeneousDtype())
	assert.False(t, data.AllFeaturesFloat32())

	homogeneous, err := New(&NDArray{Dtype: schema.DtypeFloat32, Shape: []int64{2}, Values: []float64{1, 2}})
	require.NoError(t, err)
	assert.True(t, homogeneous.HomogeneousDtype())
	assert.True(t, homogeneous.AllFeaturesFloat32())
}

func TestFeatureCount(t *testing.T) {
	arr, err := New(&NDArray{Dtype: schema.DtypeFloat32, Shape: []int64{10, 7}, Values: make([]float64, 70)})
	require.NoError(t, err)
	assert.Equal(t, int64(7), arr.FeatureCount())

	flat, err := New(&NDArray{Dtype: schema.DtypeFloat32, Shape: []int64{10}, Values: make([]float64, 10)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), flat.FeatureCount())

	mapping, err := New(map[string]*NDArray{
		"a": {Dtype: schema.DtypeFloat32, Shape: []int64{1}, Values: []float64{1}},
		"b": {Dtype: schema.DtypeFloat32, Shape: []int64{1}, Values: []float64{2}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mapping.FeatureCount())
}

func TestConvertToFloatFloat64Only(t *testing.T) {
	data, err := New(map[string]*NDArray{
		"wide":   {Dtype: schema.DtypeFloat64, Shape: []int64{1}, Values: []float64{0.1}},
		"narrow": {Dtype: schema.DtypeFloat32, Shape: []int64{1}, Values: []float64{0.2}},
		"count":  {Dtype: schema.DtypeInt64, Shape: []int64{1}, Values: []float64{3}},
		"label":  {Dtype: schema.DtypeString, Shape: []int64{1}, Values: nil},
	})
	require.NoError(t, err)

	FloatTypeConverter{ConvertAll: false}.ConvertToFloat(data)

	mapping := data.Mapping()
	assert.Equal(t, schema.DtypeFloat32, mapping["wide"].Dtype)
	assert.Equal(t, schema.DtypeFloat32, mapping["narrow"].Dtype)
	assert.Equal(t, schema.DtypeInt64, mapping["count"].Dtype)
	assert.Equal(t, schema.DtypeString, mapping["label"].Dtype)

	// values are rounded through float32 precision
	assert.Equal(t, float64(float32(0.1)), mapping["wide"].Values[0])
}

func TestConvertToFloatConvertAll(t *testing.T) {
	data, err := New(&Table{
		NumRows: 1,
		Columns: []Column{
			{Name: "f64", Dtype: schema.DtypeFloat64, Values: []float64{0.1}},
			{Name: "i32", Dtype: schema.DtypeInt32, Values: []float64{7}},
			{Name: "i64", Dtype: schema.DtypeInt64, Values: []float64{9}},
			{Name: "str", Dtype: schema.DtypeString, Values: nil},
		},
	})
	require.NoError(t, err)

	FloatTypeConverter{ConvertAll: true}.ConvertToFloat(data)

	for _, col := range data.Table().Columns {
		if col.Name == "str" {
			assert.Equal(t, schema.DtypeString, col.Dtype)
			continue
		}
		assert.Equalf(t, schema.DtypeFloat32, col.Dtype, "column %s", col.Name)
	}
}

func TestConvertToFloatFloat16Widening(t *testing.T) {
	data, err := New(&NDArray{Dtype: schema.DtypeFloat16, Shape: []int64{1}, Values: []float64{0.1}})
	require.NoError(t, err)

	FloatTypeConverter{ConvertAll: true}.ConvertToFloat(data)

	arr := data.Arr()
	assert.Equal(t, schema.DtypeFloat32, arr.Dtype)
	// 0.1 is not representable in binary16; the stored value must carry the
	// halved precision, not the original
	assert.NotEqual(t, 0.1, arr.Values[0])
	assert.InDelta(t, 0.1, arr.Values[0], 1e-3)
}

func TestConvertToFloatIdempotentOnFloat32(t *testing.T) {
	arr := &NDArray{Dtype: schema.DtypeFloat32, Shape: []int64{1}, Values: []float64{0.25}}
	data, err := New(arr)
	require.NoError(t, err)

	FloatTypeConverter{ConvertAll: true}.ConvertToFloat(data)
	assert.Equal(t, schema.DtypeFloat32, arr.Dtype)
	assert.Equal(t, 0.25, arr.Values[0])
}
