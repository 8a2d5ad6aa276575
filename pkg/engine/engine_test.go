package engine_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftsec/eventshift/pkg/engine"
	"github.com/shiftsec/eventshift/pkg/mapping"
)

const azureAlertMappings = `{
  "azure_security_alert": {
    "event_source": "azure.securitycenter",
    "event_name_prefix": "SecurityAlert",
    "user_agent": "azure.securitycenter",
    "ocsf_class": "detection_finding",
    "detection_keys": ["AlertType"],
    "asff_template": null
  }
}`

const ocsfTemplate = `name: azure_security_alert_ocsf
input_schema: azure_security_alert
output_schema: ocsf
extractors:
  alert_id: $.AlertType
template: '{"new_id": "{{ .extractors.alert_id }}"}'
`

const cloudtrailTemplate = `name: azure_security_alert_cloudtrail
input_schema: azure_security_alert
output_schema: cloudtrail
extractors:
  alert_id: $.SystemAlertId
  alert_type: $.AlertType
template: |
  {
    "eventVersion": "1.0",
    "eventSource": "{{ .config.event_source }}",
    "eventName": "{{ .extractors.alert_type }}",
    "sourceEventId": "{{ .extractors.alert_id }}",
    "recipientAccountId": "{{ .account_id }}",
    "awsRegion": "{{ .region }}",
    "eventTime": "{{ .timestamp }}"
  }
`

func sampleEvent() map[string]any {
	return map[string]any{
		"event_data": map[string]any{
			"AlertType":     "TestAlert",
			"Severity":      "Medium",
			"SystemAlertId": "abc-123",
		},
	}
}

func newEngine(t *testing.T, mappingsJSON string, templates map[string]string) *engine.Engine {
	t.Helper()

	reg, err := mapping.Parse([]byte(mappingsJSON))
	require.NoError(t, err)

	dir := t.TempDir()
	for name, content := range templates {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	return engine.New(reg, dir, engine.Options{
		AccountID: "123456789012",
		Region:    "us-east-1",
	})
}

func TestTransform_EndToEndOCSF(t *testing.T) {
	e := newEngine(t, azureAlertMappings, map[string]string{
		"azure_security_alert_ocsf.yaml": ocsfTemplate,
	})

	result, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatOCSF)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "azure_security_alert", result.EventType)
	assert.Equal(t, map[string]any{"new_id": "TestAlert"}, result.Document)
}

func TestTransform_CloudTrailWrapsAndMintsFreshID(t *testing.T) {
	e := newEngine(t, azureAlertMappings, map[string]string{
		"azure_security_alert_cloudtrail.yaml": cloudtrailTemplate,
	})

	first, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatCloudTrail)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.NotNil(t, first.CloudTrail)

	second, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatCloudTrail)
	require.NoError(t, err)
	require.NotNil(t, second.CloudTrail)

	// Two transforms of the same event differ in wire id, never reuse
	// the provider id, and agree on everything except timestamps.
	assert.NotEqual(t, first.CloudTrail.ID, second.CloudTrail.ID)
	assert.NotEqual(t, "abc-123", first.CloudTrail.ID)

	var firstData, secondData map[string]any
	require.NoError(t, json.Unmarshal([]byte(first.CloudTrail.EventData), &firstData))
	require.NoError(t, json.Unmarshal([]byte(second.CloudTrail.EventData), &secondData))

	assert.Equal(t, "abc-123", firstData["sourceEventId"], "provider id preserved inside eventData")
	delete(firstData, "eventTime")
	delete(secondData, "eventTime")
	assert.Equal(t, firstData, secondData)
}

func TestTransform_DisabledFormatReturnsNilNil(t *testing.T) {
	e := newEngine(t, azureAlertMappings, map[string]string{
		"azure_security_alert_ocsf.yaml": ocsfTemplate,
	})

	result, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatASFF)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestTransform_MissingTemplateReturnsNilNil(t *testing.T) {
	e := newEngine(t, azureAlertMappings, nil)

	result, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatCloudTrail)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestTransform_UnmatchedEventWithoutGenericMapping(t *testing.T) {
	e := newEngine(t, azureAlertMappings, nil)

	result, err := e.Transform(context.Background(), map[string]any{
		"event_data": map[string]any{"Unrelated": "x"},
	}, mapping.FormatOCSF)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestTransform_GenericFallbackUsesGenericMapping(t *testing.T) {
	mappings := `{
	  "generic": {
	    "event_source": "unknown.source",
	    "event_name_prefix": "Event",
	    "user_agent": "unknown",
	    "ocsf_class": "base_event"
	  }
	}`
	e := newEngine(t, mappings, map[string]string{
		"generic_ocsf.yaml": `name: generic_ocsf
input_schema: any
output_schema: ocsf
extractors:
  kind: $.kind
template: '{"kind": "{{ .extractors.kind | default "unknown" }}"}'
`,
	})

	result, err := e.Transform(context.Background(), map[string]any{
		"data": map[string]any{"kind": "mystery"},
	}, mapping.FormatOCSF)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "generic", result.EventType)
	assert.Equal(t, "mystery", result.Document["kind"])
}

func TestTransform_ExtractionFailureYieldsNullField(t *testing.T) {
	e := newEngine(t, azureAlertMappings, map[string]string{
		"azure_security_alert_ocsf.yaml": `name: azure_security_alert_ocsf
input_schema: x
output_schema: ocsf
extractors:
  missing: $.DoesNotExist
template: '{"value": {{ .extractors.missing | to_json }}}'
`,
	})

	result, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatOCSF)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Nil(t, result.Document["value"])
}

func TestTransform_NonJSONOutputIsHardError(t *testing.T) {
	e := newEngine(t, azureAlertMappings, map[string]string{
		"azure_security_alert_ocsf.yaml": `name: azure_security_alert_ocsf
input_schema: x
output_schema: ocsf
extractors:
  a: $.AlertType
template: 'this is not json: {{ .extractors.a }}'
`,
	})

	result, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatOCSF)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestTransform_RenderFailureIsHardError(t *testing.T) {
	e := newEngine(t, azureAlertMappings, map[string]string{
		"azure_security_alert_ocsf.yaml": `name: azure_security_alert_ocsf
input_schema: x
output_schema: ocsf
extractors:
  a: $.AlertType
filters:
  boom: "boom(v): 1 / to_int(v)"
template: '{"x": {{ .extractors.a | boom }}}'
`,
	})

	// AlertType "TestAlert" coerces to 0: division by zero at render.
	_, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatOCSF)
	require.Error(t, err)
}

func TestTransform_OCSFEnforcement(t *testing.T) {
	reg, err := mapping.Parse([]byte(azureAlertMappings))
	require.NoError(t, err)

	dir := t.TempDir()
	badOCSF := `name: azure_security_alert_ocsf
input_schema: x
output_schema: ocsf
extractors:
  a: $.AlertType
template: '{"class_uid": 9999, "metadata": {"version": "1.7.0"}}'
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "azure_security_alert_ocsf.yaml"), []byte(badOCSF), 0o600))

	t.Run("soft by default", func(t *testing.T) {
		e := engine.New(reg, dir, engine.Options{})
		result, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatOCSF)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.NotEmpty(t, result.OCSFIssues)
	})

	t.Run("hard when enforced", func(t *testing.T) {
		e := engine.New(reg, dir, engine.Options{EnforceOCSF: true})
		_, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatOCSF)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OCSF validation failed")
	})
}

func TestTransform_ProviderAliasInContext(t *testing.T) {
	e := newEngine(t, azureAlertMappings, map[string]string{
		"azure_security_alert_ocsf.yaml": `name: azure_security_alert_ocsf
input_schema: x
output_schema: ocsf
extractors:
  a: $.AlertType
template: '{"alert": "{{ .azure_event.event_data.AlertType }}", "same": "{{ .raw_event.event_data.AlertType }}"}'
`,
	})

	result, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatOCSF)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "TestAlert", result.Document["alert"])
	assert.Equal(t, "TestAlert", result.Document["same"])
}

func TestTransform_UUIDFunctionAvailable(t *testing.T) {
	e := newEngine(t, azureAlertMappings, map[string]string{
		"azure_security_alert_ocsf.yaml": `name: azure_security_alert_ocsf
input_schema: x
output_schema: ocsf
extractors:
  a: $.AlertType
template: '{"uid": "{{ uuid }}"}'
`,
	})

	first, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatOCSF)
	require.NoError(t, err)
	second, err := e.Transform(context.Background(), sampleEvent(), mapping.FormatOCSF)
	require.NoError(t, err)

	assert.NotEmpty(t, first.Document["uid"])
	assert.NotEqual(t, first.Document["uid"], second.Document["uid"])
}
