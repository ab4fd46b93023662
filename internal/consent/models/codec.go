package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"autoscuola/pkg/platform/sentinel"
)

// Legacy literal values written by earlier versions of the banner.
const (
	legacyAccepted = "accepted"
	legacyDeclined = "declined"
)

// ErrMalformedRecord marks a persisted value that is none of the known forms.
var ErrMalformedRecord = fmt.Errorf("consent record: %w", sentinel.ErrMalformed)

// Decode maps the persisted cookie value onto a Record. present=false is
// Unset. The legacy literals map to AcceptedAll/DeclinedAll, a JSON object of
// booleans maps to Custom. Anything else decodes to DeclinedAll together with
// ErrMalformedRecord: an unreadable decision never grants anything.
func Decode(value string, present bool) (Record, error) {
	if !present {
		return Unset(), nil
	}

	raw := strings.TrimSpace(value)
	if unescaped, err := url.QueryUnescape(raw); err == nil {
		raw = strings.TrimSpace(unescaped)
	}

	switch strings.Trim(raw, `"`) {
	case legacyAccepted:
		return AcceptedAll(), nil
	case legacyDeclined:
		return DeclinedAll(), nil
	}

	if strings.HasPrefix(raw, "{") {
		return decodeCustom(raw)
	}
	return DeclinedAll(), fmt.Errorf("%w: unrecognized value", ErrMalformedRecord)
}

func decodeCustom(raw string) (Record, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return DeclinedAll(), fmt.Errorf("%w: invalid json object", ErrMalformedRecord)
	}
	if dec.More() {
		return DeclinedAll(), fmt.Errorf("%w: trailing data", ErrMalformedRecord)
	}

	prefs := make(Preferences, len(KnownCapabilities))
	for name, v := range fields {
		c, known := ParseCapability(name)
		if !known {
			// Preferences for capabilities this server does not gate are ignored.
			continue
		}
		var allowed bool
		if err := json.Unmarshal(v, &allowed); err != nil {
			return DeclinedAll(), fmt.Errorf("%w: %s is not a boolean", ErrMalformedRecord, name)
		}
		prefs[c] = allowed
	}
	return Custom(prefs), nil
}

// Encode renders a Record as a cookie-safe value. Custom records are JSON,
// query-escaped so the quotes survive cookie sanitizing. Unset has no
// encoding: it is represented by deleting the value.
func Encode(r Record) (string, error) {
	switch r.kind {
	case KindAcceptedAll:
		return legacyAccepted, nil
	case KindDeclinedAll:
		return legacyDeclined, nil
	case KindCustom:
		payload := make(map[string]bool, len(r.prefs))
		for c, v := range r.prefs {
			payload[string(c)] = v
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode consent preferences: %w", err)
		}
		return url.QueryEscape(string(b)), nil
	default:
		return "", fmt.Errorf("encode consent record: %w", sentinel.ErrInvalidState)
	}
}
