package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Period
		wantErr bool
	}{
		{name: "dash separated", input: "2024-10", want: Period{Year: "2024", Month: "10"}},
		{name: "slash separated", input: "2024/3", want: Period{Year: "2024", Month: "03"}},
		{name: "month out of range", input: "2024-13", wantErr: true},
		{name: "two digit year", input: "24-10", wantErr: true},
		{name: "garbage", input: "october", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeriod(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeriod_Compare(t *testing.T) {
	sep := NewPeriod(2024, 9)
	oct := NewPeriod(2024, 10)
	jan := NewPeriod(2025, 1)

	assert.True(t, sep.Before(oct), "numeric month ordering")
	assert.True(t, oct.Before(jan), "year dominates month")
	assert.False(t, oct.Before(oct))
	assert.Equal(t, 0, oct.Compare(Period{Year: "2024", Month: "10"}))
	assert.Equal(t, 1, jan.Compare(sep))
}

func TestPeriod_Formatting(t *testing.T) {
	p := NewPeriod(2024, 10)

	assert.Equal(t, "2024-10", p.String())
	assert.Equal(t, "oct-24", p.Label())
	assert.Equal(t, "v2024.10", p.Tag())
	assert.Equal(t, "October", p.MonthName())
	assert.True(t, p.Valid())
	assert.False(t, Period{Year: "2024", Month: "00"}.Valid())
}

func TestPeriod_Contains(t *testing.T) {
	p := NewPeriod(2024, 2)

	assert.True(t, p.Contains(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), p.Start())
}

func TestCheckStatus_Worse(t *testing.T) {
	assert.Equal(t, CheckStatusWarn, CheckStatusPass.Worse(CheckStatusWarn))
	assert.Equal(t, CheckStatusFail, CheckStatusWarn.Worse(CheckStatusFail))
	assert.Equal(t, CheckStatusFail, CheckStatusFail.Worse(CheckStatusPass))
}

func TestUnitScale_Multiplier(t *testing.T) {
	assert.Equal(t, 1_000.0, UnitScaleThousands.Multiplier())
	assert.Equal(t, 1_000_000.0, UnitScaleMillions.Multiplier())
	assert.Equal(t, 1.0, UnitScaleUnits.Multiplier())
	assert.False(t, UnitScaleUnknown.Known())
}
