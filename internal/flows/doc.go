// Package flows holds the request orchestrators behind the engine: login,
// registration, refresh rotation, logout and access-token validation.
//
// Flows never import the root package. They receive their collaborators as
// function fields and small interfaces, and report failures as a kind plus
// the underlying error so the engine can map them onto public sentinels.
package flows
