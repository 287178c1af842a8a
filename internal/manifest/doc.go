// Package manifest reads and validates qvoid_package.json documents.
//
// Parse performs full validation: JSON syntax, the embedded JSON schema, and
// path-safety checks on the fields that become directory names. Decode only
// checks syntax and is used where a best-effort read is enough, such as store
// scans and the local self-manifest.
package manifest
