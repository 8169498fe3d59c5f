package jsonstat

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Geografi x Uke, with the week index given as an object in scrambled key order.
const regionWeekPayload = `{
  "version": "2.0",
  "class": "dataset",
  "id": ["Geografi", "Uke"],
  "size": [2, 3],
  "dimension": {
    "Uke": {
      "label": "Uke",
      "category": {"index": {"2025.03": 2, "2025.01": 0, "2025.02": 1}}
    },
    "Geografi": {
      "label": "Geografi",
      "category": {
        "index": ["03", "18"],
        "label": {"03": "Oslo", "18": "Nordland"}
      }
    }
  },
  "value": [10, 11, 12, 20, 21, null]
}`

func TestDecode_StrideWalkRecoversRegionWeekPairs(t *testing.T) {
	ds, err := Decode([]byte(regionWeekPayload))
	require.NoError(t, err)

	type pair struct {
		Region, Week string
		Value        float64
		Missing      bool
	}
	var got []pair
	for _, c := range ds.Cells() {
		p := pair{Region: ds.Code(c, "Geografi"), Week: ds.Code(c, "Uke")}
		if c.Value == nil {
			p.Missing = true
		} else {
			p.Value = *c.Value
		}
		got = append(got, p)
	}

	// Flat index i = geo*3 + week, the last dimension varies fastest.
	want := []pair{
		{"03", "2025.01", 10, false},
		{"03", "2025.02", 11, false},
		{"03", "2025.03", 12, false},
		{"18", "2025.01", 20, false},
		{"18", "2025.02", 21, false},
		{"18", "2025.03", 0, true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Nordland", ds.Label("Geografi", "18"))
	assert.Equal(t, "2025.02", ds.Label("Uke", "2025.02"))
}

func TestDecode_DimensionOrderIsDataDriven(t *testing.T) {
	// Same logical table as above with the dimensions swapped.
	payload := `{
	  "id": ["Uke", "Geografi"],
	  "size": [3, 2],
	  "dimension": {
	    "Geografi": {"category": {"index": ["03", "18"]}},
	    "Uke": {"category": {"index": ["2025.01", "2025.02", "2025.03"]}}
	  },
	  "value": [10, 20, 11, 21, 12, null]
	}`
	ds, err := Decode([]byte(payload))
	require.NoError(t, err)

	byKey := map[string]float64{}
	for _, c := range ds.Cells() {
		if c.Value != nil {
			byKey[ds.Code(c, "Geografi")+"/"+ds.Code(c, "Uke")] = *c.Value
		}
	}
	assert.Equal(t, map[string]float64{
		"03/2025.01": 10, "03/2025.02": 11, "03/2025.03": 12,
		"18/2025.01": 20, "18/2025.02": 21,
	}, byKey)
}

func TestDecode_SparseValuesAndSingletonDimension(t *testing.T) {
	payload := `{
	  "id": ["ContentsCode", "Tid"],
	  "size": [1, 2],
	  "dimension": {
	    "ContentsCode": {"category": {"label": {"KpiIndMnd": "Index"}}},
	    "Tid": {"category": {"index": {"2025M07": 0, "2025M08": 1}}}
	  },
	  "value": {"1": 137.9}
	}`
	ds, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, ds.Values, 2)
	assert.Nil(t, ds.Values[0])
	require.NotNil(t, ds.Values[1])
	assert.InDelta(t, 137.9, *ds.Values[1], 1e-9)
	assert.Equal(t, []string{"KpiIndMnd"}, ds.CodesOf("ContentsCode"))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `{`, ErrMalformed},
		{"no id", `{"size":[1],"dimension":{},"value":[1]}`, ErrMissingDimension},
		{"undescribed dimension", `{"id":["A"],"size":[1],"dimension":{},"value":[1]}`, ErrMissingDimension},
		{"id size mismatch", `{"id":["A","B"],"size":[1],"dimension":{},"value":[1]}`, ErrMalformed},
		{"category count mismatch", `{"id":["A"],"size":[2],"dimension":{"A":{"category":{"index":["x"]}}},"value":[1,2]}`, ErrMalformed},
		{"value count mismatch", `{"id":["A"],"size":[1],"dimension":{"A":{"category":{"index":["x"]}}},"value":[1,2]}`, ErrMalformed},
		{"value absent", `{"id":["A"],"size":[1],"dimension":{"A":{"category":{"index":["x"]}}}}`, ErrMalformed},
		{"duplicate position", `{"id":["A"],"size":[2],"dimension":{"A":{"category":{"index":{"x":0,"y":0}}}},"value":[1,2]}`, ErrMalformed},
		{"sparse out of range", `{"id":["A"],"size":[1],"dimension":{"A":{"category":{"index":["x"]}}},"value":{"3":1}}`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRequire(t *testing.T) {
	ds, err := Decode([]byte(regionWeekPayload))
	require.NoError(t, err)
	require.NoError(t, ds.Require("Geografi", "Uke"))
	require.ErrorIs(t, ds.Require("Tid"), ErrMissingDimension)
	assert.Equal(t, -1, ds.Position("Tid"))
	assert.Empty(t, ds.Code(Cell{Codes: []string{"03", "2025.01"}}, "Tid"))
}

func TestCoordinates_ThreeDimensions(t *testing.T) {
	ds := &Dataset{Size: []int{2, 3, 4}}
	// i = a*12 + b*4 + c
	assert.Equal(t, []int{1, 2, 3}, ds.Coordinates(23))
	assert.Equal(t, []int{0, 1, 0}, ds.Coordinates(4))
	assert.Equal(t, []int{1, 0, 1}, ds.Coordinates(13))
}

func TestSortedCodes(t *testing.T) {
	in := []string{"2024.52", "2025.02", "2025.01"}
	assert.Equal(t, []string{"2025.02", "2025.01", "2024.52"}, SortedCodes(in))
	assert.Equal(t, "2024.52", in[0], "input left unchanged")
}
