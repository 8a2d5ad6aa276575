// Package ocsf carries the static OCSF class dictionaries for the
// supported schema versions and validates candidate OCSF events
// against them.
package ocsf

import "sort"

// Severity IDs as defined by OCSF.
const (
	SeverityUnknown       = 0
	SeverityInformational = 1
	SeverityLow           = 2
	SeverityMedium        = 3
	SeverityHigh          = 4
	SeverityCritical      = 5
	SeverityFatal         = 6
)

// Status IDs as defined by OCSF.
const (
	StatusUnknown = 0
	StatusSuccess = 1
	StatusFailure = 2
	StatusOther   = 99
)

// Category UIDs as defined by the OCSF schema.
const (
	CategoryOther            = 0
	CategorySystemActivity   = 1
	CategoryFindings         = 2
	CategoryIAM              = 3
	CategoryNetworkActivity  = 4
	CategoryDiscovery        = 5
	CategoryApplication      = 6
)

// ClassInfo is one entry of a version's class dictionary.
type ClassInfo struct {
	Name         string
	CategoryName string
	CategoryUID  int
	// Legacy marks classes superseded by a newer findings class;
	// using one draws a deprecation warning.
	Legacy bool
}

// SupportedVersions lists the schema versions the validator accepts,
// newest first.
func SupportedVersions() []string {
	return []string{"1.7.0", "1.1.0", "1.0.0-rc.2"}
}

// VersionSupported reports whether the validator knows this version.
func VersionSupported(version string) bool {
	for _, v := range SupportedVersions() {
		if v == version {
			return true
		}
	}
	return false
}

func findingsClass(name string) ClassInfo {
	return ClassInfo{Name: name, CategoryName: "Findings", CategoryUID: CategoryFindings}
}

func iamClass(name string) ClassInfo {
	return ClassInfo{Name: name, CategoryName: "Identity & Access Management", CategoryUID: CategoryIAM}
}

func systemClass(name string) ClassInfo {
	return ClassInfo{Name: name, CategoryName: "System Activity", CategoryUID: CategorySystemActivity}
}

func networkClass(name string) ClassInfo {
	return ClassInfo{Name: name, CategoryName: "Network Activity", CategoryUID: CategoryNetworkActivity}
}

func applicationClass(name string) ClassInfo {
	return ClassInfo{Name: name, CategoryName: "Application Activity", CategoryUID: CategoryApplication}
}

func legacy(c ClassInfo) ClassInfo {
	c.Legacy = true
	return c
}

// classDictionaries maps schema version -> class_uid -> canonical
// class info. The tables are intentionally static: schema releases are
// code changes, not runtime configuration.
var classDictionaries = map[string]map[int]ClassInfo{
	"1.7.0": {
		1001: systemClass("File System Activity"),
		1007: systemClass("Process Activity"),
		2001: legacy(findingsClass("Security Finding")),
		2002: findingsClass("Vulnerability Finding"),
		2003: findingsClass("Compliance Finding"),
		2004: findingsClass("Detection Finding"),
		2005: findingsClass("Incident Finding"),
		2006: findingsClass("Data Security Finding"),
		3001: iamClass("Account Change"),
		3002: iamClass("Authentication"),
		3003: iamClass("Authorize Session"),
		3004: iamClass("Entity Management"),
		3005: iamClass("User Access Management"),
		3006: iamClass("Group Management"),
		4001: networkClass("Network Activity"),
		4002: networkClass("HTTP Activity"),
		4003: networkClass("DNS Activity"),
		6003: applicationClass("API Activity"),
	},
	"1.1.0": {
		1001: systemClass("File System Activity"),
		1007: systemClass("Process Activity"),
		2001: legacy(findingsClass("Security Finding")),
		2002: findingsClass("Vulnerability Finding"),
		2003: findingsClass("Compliance Finding"),
		2004: findingsClass("Detection Finding"),
		3001: iamClass("Account Change"),
		3002: iamClass("Authentication"),
		3003: iamClass("Authorize Session"),
		3004: iamClass("Entity Management"),
		3005: iamClass("User Access Management"),
		3006: iamClass("Group Management"),
		4001: networkClass("Network Activity"),
		4002: networkClass("HTTP Activity"),
		4003: networkClass("DNS Activity"),
		6003: applicationClass("API Activity"),
	},
	"1.0.0-rc.2": {
		1001: systemClass("File System Activity"),
		1007: systemClass("Process Activity"),
		2001: findingsClass("Security Finding"),
		3001: iamClass("Account Change"),
		3002: iamClass("Authentication"),
		3003: iamClass("Authorize Session"),
		3004: iamClass("Entity Management"),
		3005: iamClass("User Access Management"),
		4001: networkClass("Network Activity"),
		4002: networkClass("HTTP Activity"),
		4003: networkClass("DNS Activity"),
	},
}

// LookupClass returns the canonical class info for a version/class
// pair.
func LookupClass(version string, classUID int) (ClassInfo, bool) {
	dict, ok := classDictionaries[version]
	if !ok {
		return ClassInfo{}, false
	}
	info, ok := dict[classUID]
	return info, ok
}

// ClassUIDs returns the sorted class ids known for a version.
func ClassUIDs(version string) []int {
	dict := classDictionaries[version]
	uids := make([]int, 0, len(dict))
	for uid := range dict {
		uids = append(uids, uid)
	}
	sort.Ints(uids)
	return uids
}
