// Package filters provides the built-in filter library used by
// transformation templates, plus compilation of per-template custom
// filters from sandboxed expression declarations.
package filters

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
)

// Builtins returns a fresh FuncMap of every built-in filter. Filters are
// pure and total: bad input degrades to a zero value, never a panic, so
// a render failure always points at the template, not the library.
func Builtins() template.FuncMap {
	return template.FuncMap{
		// Timestamps
		"to_iso8601":          toISO8601,
		"normalize_timestamp": toISO8601,
		"to_epoch":            toEpoch,
		"to_epoch_ms":         toEpochMillis,
		"from_epoch":          fromEpoch,
		"now_iso8601":         nowISO8601,

		// Severity / status / confidence enum maps
		"severity_id":       severityID,
		"severity_name":     severityName,
		"asff_severity":     asffSeverity,
		"confidence_id":     confidenceID,
		"status_id":         statusID,
		"status_name":       statusName,
		"compliance_status": complianceStatus,
		"finding_state":     findingState,

		// Network
		"split_host": splitHost,
		"split_port": splitPort,

		// Strings
		"upper":        func(v any) string { return strings.ToUpper(toString(v)) },
		"lower":        func(v any) string { return strings.ToLower(toString(v)) },
		"title":        titleCase,
		"trim":         func(v any) string { return strings.TrimSpace(toString(v)) },
		"slugify":      slugify,
		"snake_case":   snakeCase,
		"truncate":     truncateStr,
		"replace":      replaceStr,
		"strip_prefix": func(prefix string, v any) string { return strings.TrimPrefix(toString(v), prefix) },
		"strip_suffix": func(suffix string, v any) string { return strings.TrimSuffix(toString(v), suffix) },
		"json_escape":  jsonEscape,
		"to_json":      toJSON,
		"b64encode":    func(v any) string { return base64.StdEncoding.EncodeToString([]byte(toString(v))) },
		"b64decode":    b64decode,

		// Collections
		"first":   first,
		"last":    last,
		"join":    joinValues,
		"length":  length,
		"map_get": mapGet,

		// Coercion / defaults
		"to_string": toString,
		"to_int":    toInt,
		"to_float":  toFloat,
		"to_bool":   toBool,
		"default":   defaultValue,
		"coalesce":  coalesce,

		// Cloud resource helpers
		"resource_name":  resourceName,
		"resource_group": resourceGroup,
		"gcp_project":    gcpProject,

		// Identity
		"uuid": uuid.NewString,
	}
}

// Names returns the sorted names of every built-in filter.
func Names() []string {
	m := Builtins()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.9999999Z07:00",
	"01/02/2006 15:04:05",
	time.RFC1123,
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case float64:
		return epochToTime(t), true
	case int:
		return epochToTime(float64(t)), true
	case int64:
		return epochToTime(float64(t)), true
	}
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epochToTime(f), true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// epochToTime treats values above 1e12 as milliseconds.
func epochToTime(f float64) time.Time {
	if f > 1e12 {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

func toISO8601(v any) string {
	if t, ok := parseTime(v); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return ""
}

func toEpoch(v any) int64 {
	if t, ok := parseTime(v); ok {
		return t.Unix()
	}
	return 0
}

func toEpochMillis(v any) int64 {
	if t, ok := parseTime(v); ok {
		return t.UnixMilli()
	}
	return 0
}

func fromEpoch(v any) string {
	return toISO8601(v)
}

func nowISO8601() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// severityID maps provider severity strings to OCSF severity ids.
func severityID(v any) int {
	switch strings.ToLower(strings.TrimSpace(toString(v))) {
	case "informational", "info":
		return 1
	case "low":
		return 2
	case "medium", "moderate":
		return 3
	case "high":
		return 4
	case "critical", "severe":
		return 5
	case "fatal":
		return 6
	default:
		return 0
	}
}

func severityName(v any) string {
	switch severityID(v) {
	case 1:
		return "Informational"
	case 2:
		return "Low"
	case 3:
		return "Medium"
	case 4:
		return "High"
	case 5:
		return "Critical"
	case 6:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// asffSeverity maps severity strings to ASFF severity labels.
func asffSeverity(v any) string {
	switch severityID(v) {
	case 1:
		return "INFORMATIONAL"
	case 2:
		return "LOW"
	case 3:
		return "MEDIUM"
	case 4:
		return "HIGH"
	case 5, 6:
		return "CRITICAL"
	default:
		return "INFORMATIONAL"
	}
}

// confidenceID maps confidence strings or percentages to OCSF ids.
func confidenceID(v any) int {
	switch strings.ToLower(strings.TrimSpace(toString(v))) {
	case "low":
		return 1
	case "medium", "moderate":
		return 2
	case "high":
		return 3
	}
	if f, ok := toFloatOK(v); ok {
		switch {
		case f >= 75:
			return 3
		case f >= 40:
			return 2
		case f > 0:
			return 1
		}
	}
	return 0
}

func statusID(v any) int {
	switch strings.ToLower(strings.TrimSpace(toString(v))) {
	case "success", "succeeded", "resolved", "ok":
		return 1
	case "failure", "failed", "error":
		return 2
	case "":
		return 0
	default:
		return 99
	}
}

func statusName(v any) string {
	switch statusID(v) {
	case 1:
		return "Success"
	case 2:
		return "Failure"
	case 99:
		return "Other"
	default:
		return "Unknown"
	}
}

// complianceStatus maps provider states to ASFF compliance values.
func complianceStatus(v any) string {
	switch strings.ToLower(strings.TrimSpace(toString(v))) {
	case "passed", "pass", "compliant":
		return "PASSED"
	case "failed", "fail", "noncompliant", "non_compliant":
		return "FAILED"
	case "warning", "warn":
		return "WARNING"
	default:
		return "NOT_AVAILABLE"
	}
}

// findingState maps provider alert states to ASFF record states.
func findingState(v any) string {
	switch strings.ToLower(strings.TrimSpace(toString(v))) {
	case "resolved", "dismissed", "closed", "inactive":
		return "ARCHIVED"
	default:
		return "ACTIVE"
	}
}

// splitHost returns the host part of "host:port"; a bare host passes
// through unchanged.
func splitHost(v any) string {
	s := toString(v)
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}

// splitPort returns the numeric port of "host:port", or 0.
func splitPort(v any) int {
	if _, port, err := net.SplitHostPort(toString(v)); err == nil {
		if n, err := strconv.Atoi(port); err == nil {
			return n
		}
	}
	return 0
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(v any) string {
	s := strings.ToLower(strings.TrimSpace(toString(v)))
	s = nonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

func snakeCase(v any) string {
	s := camelBoundary.ReplaceAllString(toString(v), "${1}_${2}")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ToLower(s)
}

func titleCase(v any) string {
	words := strings.Fields(strings.ToLower(toString(v)))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func truncateStr(n int, v any) string {
	s := toString(v)
	if n < 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func replaceStr(old, repl string, v any) string {
	return strings.ReplaceAll(toString(v), old, repl)
}

// jsonEscape returns the value as a JSON-safe string body, without the
// surrounding quotes.
func jsonEscape(v any) string {
	encoded, err := json.Marshal(toString(v))
	if err != nil {
		return ""
	}
	return string(encoded[1 : len(encoded)-1])
}

// toJSON renders any value as compact JSON.
func toJSON(v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(encoded)
}

func b64decode(v any) string {
	decoded, err := base64.StdEncoding.DecodeString(toString(v))
	if err != nil {
		return ""
	}
	return string(decoded)
}

func first(v any) any {
	if items, ok := v.([]any); ok {
		if len(items) == 0 {
			return nil
		}
		return items[0]
	}
	return v
}

func last(v any) any {
	if items, ok := v.([]any); ok {
		if len(items) == 0 {
			return nil
		}
		return items[len(items)-1]
	}
	return v
}

func joinValues(sep string, v any) string {
	items, ok := v.([]any)
	if !ok {
		return toString(v)
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = toString(item)
	}
	return strings.Join(parts, sep)
}

func length(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	case string:
		return len(t)
	default:
		return len(toString(v))
	}
}

func mapGet(key string, v any) any {
	if m, ok := v.(map[string]any); ok {
		return m[key]
	}
	return nil
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloatOK(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) float64 {
	f, _ := toFloatOK(v)
	return f
}

func toInt(v any) int {
	return int(toFloat(v))
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1", "on":
			return true
		}
		return false
	default:
		return toFloat(v) != 0
	}
}

// defaultValue substitutes fallback when the piped value is nil or an
// empty string.
func defaultValue(fallback, v any) any {
	if v == nil {
		return fallback
	}
	if s, ok := v.(string); ok && s == "" {
		return fallback
	}
	return v
}

// coalesce returns the first non-nil, non-empty argument.
func coalesce(values ...any) any {
	for _, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		return v
	}
	return nil
}

// resourceName returns the last segment of a slash-separated resource
// id (Azure resource ids, GCP resource names).
func resourceName(v any) string {
	s := strings.Trim(toString(v), "/")
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "/")
	return parts[len(parts)-1]
}

// resourceGroup extracts the resource-group segment of an Azure
// resource id.
func resourceGroup(v any) string {
	parts := strings.Split(toString(v), "/")
	for i, part := range parts {
		if strings.EqualFold(part, "resourceGroups") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// gcpProject extracts the project from names like
// "projects/<p>/..." or "//securitycenter.googleapis.com/projects/<p>/...".
func gcpProject(v any) string {
	parts := strings.Split(toString(v), "/")
	for i, part := range parts {
		if part == "projects" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
