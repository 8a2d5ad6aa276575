package classify

// EnvelopeKind tags which provider envelope shape carried the payload.
// Events arrive in one of three shapes; probing happens once here and
// everything downstream works with the unwrapped payload.
type EnvelopeKind int

const (
	// EnvelopeNone means no recognizable payload object was found.
	EnvelopeNone EnvelopeKind = iota
	// EnvelopeEventData is a top-level "event_data" object.
	EnvelopeEventData
	// EnvelopeData is a top-level "data" object.
	EnvelopeData
	// EnvelopeNestedData is an "event_data" object nested under "data".
	EnvelopeNestedData
)

func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeEventData:
		return "event_data"
	case EnvelopeData:
		return "data"
	case EnvelopeNestedData:
		return "data.event_data"
	default:
		return "none"
	}
}

// Unwrap locates the provider-specific payload sub-object of a raw
// event, trying the envelope shapes in fixed order. It returns the
// payload and the shape that matched; (nil, EnvelopeNone) when no shape
// yields an object.
func Unwrap(raw map[string]any) (map[string]any, EnvelopeKind) {
	if raw == nil {
		return nil, EnvelopeNone
	}
	if payload, ok := raw["event_data"].(map[string]any); ok {
		return payload, EnvelopeEventData
	}
	data, ok := raw["data"].(map[string]any)
	if !ok {
		return nil, EnvelopeNone
	}
	if payload, ok := data["event_data"].(map[string]any); ok {
		return payload, EnvelopeNestedData
	}
	return data, EnvelopeData
}
