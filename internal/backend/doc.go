// Package backend is the HTTP client for the analysis API.
//
// Ownership boundary:
// - job status fetches (poll fallback data source)
// - analysis submission and file upload (job handle issuance)
// - bearer credential attachment on every request
package backend
