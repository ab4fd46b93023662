package models

// PreferencesRequest is the JSON body of POST /consent/preferences.
// A nil field means the capability was not selected.
type PreferencesRequest struct {
	Maps *bool `json:"maps"`
}

// ToPreferences converts the request into a preference set.
func (r PreferencesRequest) ToPreferences() Preferences {
	return Preferences{CapabilityMaps: r.Maps != nil && *r.Maps}
}

// StateResponse reports the visitor's current decision.
type StateResponse struct {
	Status      string          `json:"status"`
	Preferences map[string]bool `json:"preferences,omitempty"`
}

// NewStateResponse renders a Record for JSON clients.
func NewStateResponse(r Record) StateResponse {
	resp := StateResponse{Status: r.Kind().String()}
	if prefs := r.Preferences(); prefs != nil {
		resp.Preferences = make(map[string]bool, len(prefs))
		for c, v := range prefs {
			resp.Preferences[string(c)] = v
		}
	}
	return resp
}
