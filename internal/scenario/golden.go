package scenario

import (
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// CanonicalTrace renders a run's trace as stable, indented JSON for
// golden-file comparison. Every string is normalized to NFC first:
// token names and symbols can arrive in either Unicode composition
// depending on how the scenario file was authored, and the golden
// comparison must not care.
func CanonicalTrace(result *Result) ([]byte, error) {
	type event struct {
		Seq      int64  `json:"seq"`
		Step     string `json:"step"`
		Identity string `json:"identity"`
		Kind     string `json:"kind"`
		Method   string `json:"method"`
		Args     string `json:"args"`
		OK       bool   `json:"ok"`
		Result   string `json:"result"`
	}

	events := make([]event, 0, len(result.Trace))
	for _, ev := range result.Trace {
		events = append(events, event{
			Seq:      ev.Seq,
			Step:     norm.NFC.String(ev.Step),
			Identity: norm.NFC.String(ev.Identity),
			Kind:     ev.Kind,
			Method:   norm.NFC.String(ev.Method),
			Args:     norm.NFC.String(ev.Args),
			OK:       ev.OK,
			Result:   norm.NFC.String(ev.Result),
		})
	}

	doc := struct {
		State  string  `json:"state"`
		Pass   bool    `json:"pass"`
		Events []event `json:"events"`
	}{
		State:  result.State.String(),
		Pass:   result.Pass,
		Events: events,
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode trace: %w", err)
	}
	return append(out, '\n'), nil
}
