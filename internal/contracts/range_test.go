package contracts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange_Canonical(t *testing.T) {
	tests := []struct {
		name    string
		in      Range
		want    Range
		wantErr string
	}{
		{name: "zero uses default", in: Range{}, want: Days(180)},
		{name: "days kept", in: Days(30), want: Days(30)},
		{name: "explicit kept", in: Between("2024-01-01", "2024-03-31"), want: Between("2024-01-01", "2024-03-31")},
		{name: "single day explicit", in: Between("2024-01-01", "2024-01-01"), want: Between("2024-01-01", "2024-01-01")},
		{name: "negative days", in: Days(-5), wantErr: "days"},
		{name: "both forms", in: Range{Days: 30, StartDate: "2024-01-01", EndDate: "2024-02-01"}, wantErr: "days"},
		{name: "start only", in: Range{StartDate: "2024-01-01"}, wantErr: "end_date"},
		{name: "end only", in: Range{EndDate: "2024-01-01"}, wantErr: "start_date"},
		{name: "bad date", in: Between("2024/01/01", "2024-02-01"), wantErr: "start_date"},
		{name: "reversed", in: Between("2024-03-01", "2024-02-01"), wantErr: "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Canonical(180)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRange))
				var rerr *InvalidRangeError
				require.ErrorAs(t, err, &rerr)
				assert.Equal(t, tt.wantErr, rerr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRange_String(t *testing.T) {
	assert.Equal(t, "90d", Days(90).String())
	assert.Equal(t, "2024-01-01..2024-02-01", Between("2024-01-01", "2024-02-01").String())
}

func TestRegime_Level(t *testing.T) {
	tests := map[Regime]Regime{
		RegimeRed:    RegimeHigh,
		RegimeHigh:   RegimeHigh,
		RegimeYellow: RegimeMedium,
		RegimeMedium: RegimeMedium,
		RegimeGreen:  RegimeLow,
		RegimeLow:    RegimeLow,
		"unknown":    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, in.Level(), string(in))
	}

	_, ok := ParseRegime("purple")
	assert.False(t, ok)
	r, ok := ParseRegime("YELLOW")
	assert.True(t, ok)
	assert.Equal(t, RegimeYellow, r)
}

func TestErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("connection refused")
	terr := &TransportError{Attempts: 3, Err: cause}

	assert.True(t, errors.Is(terr, ErrTransport))
	assert.True(t, errors.Is(terr, cause))
	assert.Contains(t, terr.Error(), "3 attempts")

	assert.True(t, errors.Is(&FormatError{Reason: "x"}, ErrFormat))
	assert.True(t, errors.Is(&StreamDecodeError{Reason: "x"}, ErrStreamDecode))
	assert.False(t, errors.Is(&FormatError{Reason: "x"}, ErrTransport))
}

func TestCurrentSnapshot_PresentSignals(t *testing.T) {
	snap := &CurrentSnapshot{
		HARExcessVol:   Float(1.2),
		DCCCorrelation: Float(0.4),
		VIXChange:      Float(-0.1),
	}
	assert.Equal(t, []string{SignalDCC, SignalHAR, SignalVIX}, snap.PresentSignals())

	snap.AvailableSignals = []string{SignalHAR}
	assert.True(t, snap.HasSignal(SignalHAR))
	assert.False(t, snap.HasSignal(SignalDCC))
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	text, err := StateOpen.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "open", string(text))
}
