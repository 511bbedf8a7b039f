// Package testutil provides testing utilities for talpa.
package testutil

// Obviously fake credentials so secret scanners stay quiet.
const (
	// FakeAccountID is a Cloudflare account identifier for tests.
	FakeAccountID = "test-account-id"

	// FakeZoneID is a Cloudflare zone identifier for tests.
	FakeZoneID = "test-zone-id"

	// FakeTunnelID is a Cloudflare tunnel identifier for tests.
	FakeTunnelID = "test-tunnel-id"

	// FakeAPIToken is a Cloudflare API token for tests.
	FakeAPIToken = "test-cloudflare-api-token"
)
