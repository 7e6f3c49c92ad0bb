package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Shared-tier namespaces.
const (
	NamespaceGeneral        = "cache-service"
	NamespaceFHIR           = "fhir_r4"
	NamespaceMedicalRecords = "medical_records"
	NamespaceSessions       = "sessions"
)

// Key prefixes.
const (
	PrefixMedicalRecord   = "medical_record"
	PrefixPatient         = "patient"
	PrefixPatientRecords  = "patient_records"
	PrefixUserPermissions = "user_permissions"
	PrefixAccessControl   = "access_control"
	PrefixAccessList      = "access_list"
	PrefixSearch          = "search"
	PrefixFHIR            = "fhir"
	PrefixSession         = "session"
	PrefixMigrationStats  = "migration_stats"
)

const separator = ":"

// queryHashLen is the number of hex characters kept from the query digest.
const queryHashLen = 16

// partReplacer percent-encodes the separator (and the escape character
// itself) inside parts, so distinct part lists never join to the same key.
var partReplacer = strings.NewReplacer("%", "%25", separator, "%3A")

// Join builds "prefix:part1:part2...". A ":" or "%" inside a part is
// percent-encoded; the prefix is used as given.
func Join(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}

	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = partReplacer.Replace(p)
	}

	return prefix + separator + strings.Join(escaped, separator)
}

// MedicalRecord keys a single medical record.
func MedicalRecord(recordID string) string {
	return Join(PrefixMedicalRecord, recordID)
}

// Patient keys a patient profile.
func Patient(patientID string) string {
	return Join(PrefixPatient, patientID)
}

// PatientRecords keys the list of record IDs owned by a patient.
func PatientRecords(patientID string) string {
	return Join(PrefixPatientRecords, patientID)
}

// UserPermissions keys the permission set of a user.
func UserPermissions(userID string) string {
	return Join(PrefixUserPermissions, userID)
}

// AccessControl keys an access decision for one user on one record.
func AccessControl(recordID, userID string) string {
	return Join(PrefixAccessControl, recordID, userID)
}

// RecordAccessList keys the list of users granted access to a record.
func RecordAccessList(recordID string) string {
	return Join(PrefixAccessList, recordID)
}

// SearchResults keys a user's search. The query is normalized (trimmed,
// lowercased, inner whitespace collapsed) and hashed, so equivalent queries
// share an entry and raw search terms never appear in the store.
func SearchResults(query, userID string) string {
	return Join(PrefixSearch, userID, hashQuery(query))
}

// FHIRResource keys a converted FHIR resource, e.g. ("Patient", "42").
func FHIRResource(resourceType, id string) string {
	return Join(PrefixFHIR, resourceType, id)
}

// Session keys a user session.
func Session(sessionID string) string {
	return Join(PrefixSession, sessionID)
}

// MigrationStats keys the statistics of a data migration job.
func MigrationStats(jobID string) string {
	return Join(PrefixMigrationStats, jobID)
}

// NormalizeQuery returns the form of a search query used for hashing.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func hashQuery(query string) string {
	h := sha256.Sum256([]byte(NormalizeQuery(query)))
	return hex.EncodeToString(h[:])[:queryHashLen]
}
