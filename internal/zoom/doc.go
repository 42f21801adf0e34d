// Package zoom implements a minimal client for the Zoom meetings REST API,
// covering poll creation, launch and listing.
package zoom
