package normalize

import (
	"encoding/json"

	"github.com/wonny/riskdash/internal/contracts"
)

// SourceStream marks snapshots decoded from the live stream
const SourceStream = "stream"

// signalAliases maps the nested `signals` object onto flat fields
var signalAliases = map[string]func(*contracts.CurrentSnapshot) **float64{
	"quantile":      func(s *contracts.CurrentSnapshot) **float64 { return &s.QuantileSignal },
	"har_vol":       func(s *contracts.CurrentSnapshot) **float64 { return &s.HARExcessVol },
	"vix_change":    func(s *contracts.CurrentSnapshot) **float64 { return &s.VIXChange },
	"dcc":           func(s *contracts.CurrentSnapshot) **float64 { return &s.DCCCorrelation },
	"credit_spread": func(s *contracts.CurrentSnapshot) **float64 { return &s.CreditSpreadChange },
	"composite":     func(s *contracts.CurrentSnapshot) **float64 { return &s.CompositeRiskScore },
}

// Snapshot decodes one stream message.
// A message is accepted only with a string timestamp and no error field.
func Snapshot(data []byte) (*contracts.CurrentSnapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &contracts.StreamDecodeError{Reason: "malformed JSON object"}
	}

	// 스트림에서는 error 키가 있으면 값이 null이어도 버림
	if _, ok := raw["error"]; ok {
		msg, _ := UpstreamError(data)
		if msg == "" {
			msg = "unspecified upstream error"
		}
		return nil, &contracts.StreamDecodeError{Reason: "error frame", Upstream: msg}
	}

	var ts string
	tsRaw, ok := raw["timestamp"]
	if !ok || json.Unmarshal(tsRaw, &ts) != nil {
		return nil, &contracts.StreamDecodeError{Reason: "missing string timestamp"}
	}

	var snap contracts.CurrentSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &contracts.StreamDecodeError{Reason: err.Error()}
	}

	if sigRaw, ok := raw["signals"]; ok {
		var signals map[string]any
		if json.Unmarshal(sigRaw, &signals) == nil {
			for name, field := range signalAliases {
				v, ok := signals[name].(float64)
				if !ok {
					continue
				}
				if p := field(&snap); *p == nil {
					*p = &v
				}
			}
		}
	}

	if _, ok := raw["composite_warning"]; !ok {
		var w bool
		if wRaw, ok := raw["is_warning"]; ok && json.Unmarshal(wRaw, &w) == nil {
			snap.CompositeWarning = w
		}
	}

	if snap.Source == "" {
		snap.Source = SourceStream
	}

	out := SanitizeSnapshot(&snap)
	if len(out.AvailableSignals) == 0 {
		out.AvailableSignals = out.PresentSignals()
	}
	return out, nil
}
