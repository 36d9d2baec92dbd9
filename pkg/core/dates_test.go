package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		ok      bool
		wantErr bool
	}{
		{name: "iso date", input: "2024-03-01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "iso datetime", input: "2024-03-01 13:45:00", want: time.Date(2024, 3, 1, 13, 45, 0, 0, time.UTC), ok: true},
		{name: "slashes", input: "2024/03/01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "rfc3339", input: "2024-03-01T10:00:00Z", want: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ok: true},
		{name: "spreadsheet serial", input: "45352", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "slashed dates are month first", input: "03/04/2024", want: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "day first is rejected", input: "31/01/2024", wantErr: true},
		{name: "empty", input: "  ", ok: false},
		{name: "nan", input: "NaN", ok: false},
		{name: "garbage", input: "not a date", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			}
		})
	}
}

func TestDay(t *testing.T) {
	in := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Day(in))
}

func TestFlowName(t *testing.T) {
	assert.Equal(t, "Pre-Arrival", FlowName(FlowPreArrival))
	assert.Equal(t, "MOSB", FlowName(FlowMOSB))
	assert.Equal(t, "Unknown(7)", FlowName(7))
	assert.False(t, ValidFlowCode(-1))
	assert.True(t, ValidFlowCode(FlowSite))
}

func TestErrorCategories(t *testing.T) {
	cfgErr := NewConfigError("tolerance.default", "must be positive, got %v", 0.0)
	assert.Equal(t, "config: tolerance.default: must be positive, got 0", cfgErr.Error())
	assert.True(t, IsConfigError(cfgErr))

	pe := &PersistenceError{Op: "commit", Err: ErrStoreClosed}
	assert.True(t, IsPersistenceError(pe))
	assert.ErrorIs(t, pe, ErrStoreClosed)
	assert.False(t, IsConfigError(pe))
}
