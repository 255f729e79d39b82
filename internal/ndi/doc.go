// Package ndi provides the HTTP client for the Nexus Dashboard Insights
// controller API.
//
// A Client owns one authenticated session: Login posts the credentials and the
// session cookie the controller issues is kept in the client's cookie jar for
// later calls. FetchAll retrieves the complete endpoint collection of a site
// with a count probe followed by a full fetch (or an offset loop when a page
// size is configured).
//
// # Errors
//
// Failures are reported with typed errors so the caller can tell them apart
// with errors.As:
//   - AuthenticationError: the login request was rejected
//   - TransportError: the request never produced a response (timeout,
//     connection refused, TLS failure)
//   - APIError: a data request returned a non-2xx status or a body that is
//     not valid JSON
//
// Use ResponseBody to extract the status code and response body from any of
// them for logging.
package ndi
