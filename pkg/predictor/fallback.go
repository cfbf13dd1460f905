package predictor

import (
	"encoding/json"
)

// fallbackPredictions is served when every upstream fetch of an aggregate
// fails. Each item is marked so clients can tell demo data from live data.
var fallbackPredictions = []string{
	`{"matchId":"demo-1","homeTeam":"Kaizer Chiefs","awayTeam":"Orlando Pirates","pick":"Home","confidence":0.58,"source":"demo","fallback":true}`,
	`{"matchId":"demo-2","homeTeam":"Mamelodi Sundowns","awayTeam":"SuperSport United","pick":"Home","confidence":0.71,"source":"demo","fallback":true}`,
	`{"matchId":"demo-3","homeTeam":"Cape Town City","awayTeam":"Stellenbosch","pick":"Draw","confidence":0.41,"source":"demo","fallback":true}`,
}

// FallbackPredictions returns a fresh copy of the fixed demo prediction set.
func FallbackPredictions() []json.RawMessage {
	out := make([]json.RawMessage, len(fallbackPredictions))
	for i, p := range fallbackPredictions {
		out[i] = json.RawMessage(p)
	}
	return out
}
