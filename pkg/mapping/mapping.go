package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Format identifies a canonical output schema.
type Format string

const (
	FormatCloudTrail Format = "cloudtrail"
	FormatOCSF       Format = "ocsf"
	FormatASFF       Format = "asff"
)

// Formats lists every supported output format.
func Formats() []Format {
	return []Format{FormatCloudTrail, FormatOCSF, FormatASFF}
}

// GenericType is the reserved universal-fallback event type. A mapping
// under this name may omit all classifier fields.
const GenericType = "generic"

// Match modes for the event-type comparison.
const (
	MatchContains    = "contains"
	MatchExact       = "exact"
	MatchNestedExact = "nested_exact"
	MatchStartsWith  = "startswith"
)

// TemplateRef is the tri-state template reference from the mapping
// configuration: absent (fall back to the conventional filename),
// explicit null (combination disabled, not a failure), or a filename.
type TemplateRef struct {
	present bool
	null    bool
	name    string
}

// UnmarshalJSON records whether the field appeared at all, so that an
// explicit null stays distinguishable from a missing key.
func (r *TemplateRef) UnmarshalJSON(data []byte) error {
	r.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		r.null = true
		return nil
	}
	return json.Unmarshal(data, &r.name)
}

// MarshalJSON round-trips the tri-state value.
func (r TemplateRef) MarshalJSON() ([]byte, error) {
	if !r.present || r.null {
		return []byte("null"), nil
	}
	return json.Marshal(r.name)
}

// Disabled reports an explicit null: the (event_type, format) pair is
// intentionally turned off.
func (r TemplateRef) Disabled() bool { return r.present && r.null }

// Name returns the referenced template filename and whether one was set.
func (r TemplateRef) Name() (string, bool) {
	return r.name, r.present && !r.null && r.name != ""
}

// NamedRef builds a set reference, used by tests and programmatic
// registry construction.
func NamedRef(name string) TemplateRef { return TemplateRef{present: true, name: name} }

// DisabledRef builds an explicit-null reference.
func DisabledRef() TemplateRef { return TemplateRef{present: true, null: true} }

// EventTypeMapping describes one known event type: how to recognize it
// and which template renders it per output format.
type EventTypeMapping struct {
	Name string `json:"-"`

	EventSource     string `json:"event_source"`
	EventNamePrefix string `json:"event_name_prefix"`
	UserAgent       string `json:"user_agent"`
	OCSFClass       string `json:"ocsf_class"`

	EventTypeKey       string   `json:"event_type_key,omitempty"`
	EventTypeValue     string   `json:"event_type_value,omitempty"`
	EventTypeMatchMode string   `json:"event_type_match_mode,omitempty"`
	DetectionKeys      []string `json:"detection_keys,omitempty"`

	CloudTrailTemplate TemplateRef `json:"cloudtrail_template"`
	OCSFTemplate       TemplateRef `json:"ocsf_template"`
	ASFFTemplate       TemplateRef `json:"asff_template"`

	ASFFProductName string `json:"asff_product_name,omitempty"`
	ASFFProductID   string `json:"asff_product_id,omitempty"`
	ASFFCompanyName string `json:"asff_company_name,omitempty"`
}

// TemplateFor returns the template reference for the given format.
func (m *EventTypeMapping) TemplateFor(format Format) TemplateRef {
	switch format {
	case FormatCloudTrail:
		return m.CloudTrailTemplate
	case FormatOCSF:
		return m.OCSFTemplate
	case FormatASFF:
		return m.ASFFTemplate
	default:
		return TemplateRef{}
	}
}

// MatchMode returns the configured match mode, defaulting to contains.
func (m *EventTypeMapping) MatchMode() string {
	if m.EventTypeMatchMode == "" {
		return MatchContains
	}
	return m.EventTypeMatchMode
}

// HasDetectionKeys reports whether the mapping declares detection keys.
func (m *EventTypeMapping) HasDetectionKeys() bool { return len(m.DetectionKeys) > 0 }

// HasEventTypePair reports whether the mapping declares an event-type
// key/value comparison.
func (m *EventTypeMapping) HasEventTypePair() bool {
	return m.EventTypeKey != "" && m.EventTypeValue != ""
}

// ContextMap exposes the mapping to template rendering as plain values.
func (m *EventTypeMapping) ContextMap() map[string]any {
	return map[string]any{
		"name":              m.Name,
		"event_source":      m.EventSource,
		"event_name_prefix": m.EventNamePrefix,
		"user_agent":        m.UserAgent,
		"ocsf_class":        m.OCSFClass,
		"asff_product_name": m.ASFFProductName,
		"asff_product_id":   m.ASFFProductID,
		"asff_company_name": m.ASFFCompanyName,
	}
}

func (m *EventTypeMapping) validate() error {
	if m.Name == GenericType {
		// Universal fallback: all classifier fields optional.
		return nil
	}
	required := map[string]string{
		"event_source":      m.EventSource,
		"event_name_prefix": m.EventNamePrefix,
		"user_agent":        m.UserAgent,
		"ocsf_class":        m.OCSFClass,
	}
	for field, value := range required {
		if value == "" {
			return fmt.Errorf("mapping %q: required field %q is empty", m.Name, field)
		}
	}
	switch m.EventTypeMatchMode {
	case "", MatchContains, MatchExact, MatchNestedExact, MatchStartsWith:
	default:
		return fmt.Errorf("mapping %q: unknown event_type_match_mode %q", m.Name, m.EventTypeMatchMode)
	}
	if (m.EventTypeKey == "") != (m.EventTypeValue == "") {
		return fmt.Errorf("mapping %q: event_type_key and event_type_value must be set together", m.Name)
	}
	for i, key := range m.DetectionKeys {
		if key == "" {
			return fmt.Errorf("mapping %q: detection_keys[%d] is empty", m.Name, i)
		}
	}
	return nil
}
