// Package scanapi drives the label scanning API: password-grant
// authentication, multipart image uploads, and polling for scan results.
// The Runner fans a corpus out over bounded workers and renders each
// outcome as a results row, flagging contradictory or referentially
// broken backend responses along the way.
package scanapi
