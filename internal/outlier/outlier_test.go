package outlier

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	sku    string
	vendor string
	loc    string
	weight *float64
}

func f(v float64) *float64 { return &v }

func weightOf(r row) *float64 { return r.weight }

func byVendorLocation(r row) []string { return []string{r.vendor, r.loc} }

func TestDetect_InjectedValues(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const median = 100.0

	for trial := 0; trial < 20; trial++ {
		rows := make([]row, 0, 100)
		for i := 0; i < 95; i++ {
			rows = append(rows, row{sku: "N", vendor: "HE", loc: "DSV Indoor", weight: f(median + rng.NormFloat64()*5)})
		}
		injected := map[int]bool{}
		for i := 0; i < 5; i++ {
			injected[len(rows)] = true
			rows = append(rows, row{sku: "X", vendor: "HE", loc: "DSV Indoor", weight: f(median * float64(5+i))})
		}
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

		flagged := Detect(rows, weightOf, byVendorLocation, DefaultThreshold)
		got := 0
		for _, fl := range flagged {
			if fl.Row.sku == "X" {
				got++
			}
		}
		require.Equal(t, 5, got, "trial %d", trial)
		for _, fl := range flagged {
			assert.Equal(t, []string{"HE", "DSV Indoor"}, fl.Group)
		}
	}
}

func TestDetect_EmptyNotNil(t *testing.T) {
	rows := []row{
		{vendor: "HE", weight: f(10)},
		{vendor: "HE", weight: f(11)},
		{vendor: "HE", weight: f(12)},
	}
	got := Detect(rows, weightOf, byVendorLocation, 3.5)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = Detect[row](nil, weightOf, byVendorLocation, 3.5)
	assert.NotNil(t, got)
}

func TestDetect_NullsExcluded(t *testing.T) {
	rows := []row{
		{sku: "A", vendor: "V", weight: nil},
		{sku: "B", vendor: "V", weight: f(1)},
		{sku: "C", vendor: "V", weight: f(1)},
		{sku: "D", vendor: "V", weight: f(1)},
		{sku: "E", vendor: "V", weight: f(50)},
	}
	got := Detect(rows, weightOf, byVendorLocation, 3.5)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Index)
	assert.Equal(t, "E", got[0].Row.sku)
	// MAD of {1,1,1,50} around median 1 is 0, floored to 1
	assert.Equal(t, 1.0, got[0].MAD)
	assert.InDelta(t, 0.6745*49, got[0].Score, 1e-9)
}

func TestDetect_GroupsAreIndependent(t *testing.T) {
	rows := []row{
		{vendor: "A", weight: f(1000)},
		{vendor: "A", weight: f(1001)},
		{vendor: "A", weight: f(999)},
		{vendor: "B", weight: f(1)},
		{vendor: "B", weight: f(2)},
		{vendor: "B", weight: f(1)},
	}
	got := Detect(rows, weightOf, func(r row) []string { return []string{r.vendor} }, 3.5)
	assert.Empty(t, got)

	got = Detect(rows, weightOf, nil, 3.5)
	assert.Empty(t, got, "single pooled group has MAD large enough to flag nothing")
}

func TestMedianAndMAD(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		median float64
		mad    float64
	}{
		{"empty", nil, 0, 0},
		{"odd", []float64{3, 1, 2}, 2, 1},
		{"even", []float64{4, 1, 3, 2}, 2.5, 1},
		{"constant", []float64{5, 5, 5}, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			med := Median(tt.values)
			assert.Equal(t, tt.median, med)
			assert.Equal(t, tt.mad, MAD(tt.values, med))
		})
	}
}
