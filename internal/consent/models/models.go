package models

import "maps"

// Capability names a third-party feature that may only load with consent.
type Capability string

const (
	CapabilityMaps Capability = "maps"
)

// KnownCapabilities lists every capability a record can carry a preference for.
var KnownCapabilities = []Capability{CapabilityMaps}

// ParseCapability validates a capability name coming from markup or a request.
func ParseCapability(name string) (Capability, bool) {
	for _, c := range KnownCapabilities {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// Kind tags the variant held by a Record.
type Kind int

const (
	KindUnset Kind = iota
	KindAcceptedAll
	KindDeclinedAll
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindAcceptedAll:
		return "accepted"
	case KindDeclinedAll:
		return "declined"
	case KindCustom:
		return "custom"
	default:
		return "unset"
	}
}

// Preferences maps capabilities to the visitor's per-capability choice.
type Preferences map[Capability]bool

// Record is the visitor's consent decision: Unset, AcceptedAll, DeclinedAll
// or Custom with preferences. The zero value is Unset. Records are values;
// a change of mind produces a new Record.
type Record struct {
	kind  Kind
	prefs Preferences
}

func Unset() Record       { return Record{kind: KindUnset} }
func AcceptedAll() Record { return Record{kind: KindAcceptedAll} }
func DeclinedAll() Record { return Record{kind: KindDeclinedAll} }

// Custom builds a per-capability record. Known capabilities missing from
// prefs are stored as denied so the record is always complete.
func Custom(prefs Preferences) Record {
	complete := make(Preferences, len(KnownCapabilities))
	for _, c := range KnownCapabilities {
		complete[c] = prefs[c]
	}
	return Record{kind: KindCustom, prefs: complete}
}

func (r Record) Kind() Kind { return r.kind }

func (r Record) IsUnset() bool { return r.kind == KindUnset }

// Permits reports whether capability c may load under this record.
func (r Record) Permits(c Capability) bool {
	switch r.kind {
	case KindAcceptedAll:
		return true
	case KindCustom:
		return r.prefs[c]
	default:
		return false
	}
}

// Preferences returns the effective per-capability view. Unset has none.
func (r Record) Preferences() Preferences {
	switch r.kind {
	case KindCustom:
		return maps.Clone(r.prefs)
	case KindAcceptedAll, KindDeclinedAll:
		out := make(Preferences, len(KnownCapabilities))
		for _, c := range KnownCapabilities {
			out[c] = r.kind == KindAcceptedAll
		}
		return out
	default:
		return nil
	}
}

// Equal compares kind and, for Custom, the stored preferences.
func (r Record) Equal(other Record) bool {
	if r.kind != other.kind {
		return false
	}
	if r.kind != KindCustom {
		return true
	}
	return maps.Equal(r.prefs, other.prefs)
}
