// Package persistence stores device credentials on disk.
//
// A device that has completed registration keeps the gateway-issued
// UUID and token (plus its own device identifier) in a small versioned
// JSON file, so a restart authenticates instead of re-registering.
package persistence
