// Package cachekey builds the cache keys and namespaces shared by every
// component that reads or writes the record cache.
//
// Keys are colon-separated, starting with a fixed prefix per kind:
//
//	cachekey.MedicalRecord("rec-1")              // "medical_record:rec-1"
//	cachekey.AccessControl("rec-1", "doctor-7")  // "access_control:rec-1:doctor-7"
//	cachekey.SearchResults("Diabetes ", "u1")    // "search:u1:<16 hex chars>"
//
// A ":" or "%" inside an ID is percent-encoded, so different IDs never
// produce the same key.
//
// Builders are deterministic: the same inputs always give the same key, so
// independent processes agree on where a value lives in the shared tier.
package cachekey
