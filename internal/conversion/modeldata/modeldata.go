package modeldata

import (
	"errors"
	"fmt"
	"sort"

	"github.com/modelsmith/cardstore/internal/conversion/schema"
	"github.com/x448/float16"
)

// Container kinds for sample input data.
const (
	DataTypeNDArray    = "NDArray"
	DataTypeDictionary = "Dictionary"
	DataTypeTable      = "Table"
)

var ErrUnsupportedData = errors.New("unsupported sample data container")

// NDArray is a dense numeric array with a declared element type. Values are
// held as float64 and reinterpreted according to Dtype; dtype coercion rounds
// values in place.
type NDArray struct {
	Dtype  string    `json:"dtype"`
	Shape  []int64   `json:"shape"`
	Values []float64 `json:"values"`
}

// Column is a single named column of a Table.
type Column struct {
	Name   string    `json:"name"`
	Dtype  string    `json:"dtype"`
	Values []float64 `json:"values"`
}

// Table is a columnar sample (dataframe-like).
type Table struct {
	Columns []Column `json:"columns"`
	NumRows int64    `json:"num_rows"`
}

// ModelData normalizes a sample input object (array, mapping of arrays, or
// table) into a uniform view for type inference and dtype coercion.
type ModelData struct {
	dataType string
	arr      *NDArray
	mapping  map[string]*NDArray
	table    *Table
}

// New wraps sample input data. Supported kinds are *NDArray,
// map[string]*NDArray and *Table.
func New(data interface{}) (*ModelData, error) {
	switch d := data.(type) {
	case *NDArray:
		if d == nil {
			return nil, fmt.Errorf("%w: nil array", ErrUnsupportedData)
		}
		return &ModelData{dataType: DataTypeNDArray, arr: d}, nil
	case map[string]*NDArray:
		if len(d) == 0 {
			return nil, fmt.Errorf("%w: empty mapping", ErrUnsupportedData)
		}
		return &ModelData{dataType: DataTypeDictionary, mapping: d}, nil
	case *Table:
		if d == nil || len(d.Columns) == 0 {
			return nil, fmt.Errorf("%w: empty table", ErrUnsupportedData)
		}
		return &ModelData{dataType: DataTypeTable, table: d}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedData, data)
	}
}

// DataType returns the container kind of the wrapped sample.
func (m *ModelData) DataType() string {
	return m.dataType
}

// Arr returns the wrapped array for NDArray samples.
func (m *ModelData) Arr() *NDArray {
	return m.arr
}

// Mapping returns the wrapped mapping for Dictionary samples.
func (m *ModelData) Mapping() map[string]*NDArray {
	return m.mapping
}

// Table returns the wrapped table for Table samples.
func (m *ModelData) Table() *Table {
	return m.table
}

// Features returns the logical feature names of the sample in deterministic
// order: column names for tables, sorted keys for mappings, and the single
// default name for arrays.
func (m *ModelData) Features() []string {
	switch m.dataType {
	case DataTypeNDArray:
		return []string{"inputs"}
	case DataTypeDictionary:
		names := make([]string, 0, len(m.mapping))
		for name := range m.mapping {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	default:
		names := make([]string, 0, len(m.table.Columns))
		for _, col := range m.table.Columns {
			names = append(names, col.Name)
		}
		return names
	}
}

// Dtypes returns the distinct element types present in the sample.
func (m *ModelData) Dtypes() []string {
	seen := map[string]bool{}
	var dtypes []string
	for _, dt := range m.allDtypes() {
		if !seen[dt] {
			seen[dt] = true
			dtypes = append(dtypes, dt)
		}
	}
	sort.Strings(dtypes)
	return dtypes
}

// NumDtypes reports the count of distinct element types.
func (m *ModelData) NumDtypes() int {
	return len(m.Dtypes())
}

// HomogeneousDtype reports whether every column/field shares one element type.
func (m *ModelData) HomogeneousDtype() bool {
	return m.NumDtypes() == 1
}

// AllFeaturesFloat32 reports whether every field is already float32.
func (m *ModelData) AllFeaturesFloat32() bool {
	dtypes := m.Dtypes()
	return len(dtypes) == 1 && dtypes[0] == schema.DtypeFloat32
}

// FeatureCount returns the per-row feature count: column count for tables,
// entry count for mappings, and the trailing dimension for arrays.
func (m *ModelData) FeatureCount() int64 {
	switch m.dataType {
	case DataTypeNDArray:
		if len(m.arr.Shape) < 2 {
			return 1
		}
		return m.arr.Shape[len(m.arr.Shape)-1]
	case DataTypeDictionary:
		return int64(len(m.mapping))
	default:
		return int64(len(m.table.Columns))
	}
}

func (m *ModelData) allDtypes() []string {
	switch m.dataType {
	case DataTypeNDArray:
		return []string{m.arr.Dtype}
	case DataTypeDictionary:
		dtypes := make([]string, 0, len(m.mapping))
		for _, name := range m.Features() {
			dtypes = append(dtypes, m.mapping[name].Dtype)
		}
		return dtypes
	default:
		dtypes := make([]string, 0, len(m.table.Columns))
		for _, col := range m.table.Columns {
			dtypes = append(dtypes, col.Dtype)
		}
		return dtypes
	}
}

func isNumeric(dtype string) bool {
	switch dtype {
	case schema.DtypeInt32, schema.DtypeInt64, schema.DtypeFloat16, schema.DtypeFloat32, schema.DtypeFloat64:
		return true
	}
	return false
}

// FloatTypeConverter coerces sample data to float32 in place. With ConvertAll
// every numeric field is converted regardless of current type; otherwise only
// float64 fields are converted.
type FloatTypeConverter struct {
	ConvertAll bool
}

// ConvertToFloat applies the coercion policy to the wrapped sample.
func (f FloatTypeConverter) ConvertToFloat(data *ModelData) {
	switch data.dataType {
	case DataTypeNDArray:
		f.convertArray(data.arr)
	case DataTypeDictionary:
		for _, arr := range data.mapping {
			f.convertArray(arr)
		}
	case DataTypeTable:
		for i := range data.table.Columns {
			f.convertColumn(&data.table.Columns[i])
		}
	}
}

func (f FloatTypeConverter) convertArray(arr *NDArray) {
	if !f.shouldConvert(arr.Dtype) {
		return
	}
	roundValues(arr.Dtype, arr.Values)
	arr.Dtype = schema.DtypeFloat32
}

func (f FloatTypeConverter) convertColumn(col *Column) {
	if !f.shouldConvert(col.Dtype) {
		return
	}
	roundValues(col.Dtype, col.Values)
	col.Dtype = schema.DtypeFloat32
}

func (f FloatTypeConverter) shouldConvert(dtype string) bool {
	if !isNumeric(dtype) || dtype == schema.DtypeFloat32 {
		return false
	}
	if f.ConvertAll {
		return true
	}
	return dtype == schema.DtypeFloat64
}

// roundValues rounds stored values through the target precision so the
// in-place coercion matches what a real cast would produce.
func roundValues(fromDtype string, values []float64) {
	for i, v := range values {
		if fromDtype == schema.DtypeFloat16 {
			// widen via IEEE 754 binary16 so values stay bit-exact
			values[i] = float64(float16.Fromfloat32(float32(v)).Float32())
			continue
		}
		values[i] = float64(float32(v))
	}
}
