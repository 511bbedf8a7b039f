package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alekspetrov/talpa/internal/cloudflare"
	"github.com/alekspetrov/talpa/internal/credentials"
	"github.com/alekspetrov/talpa/internal/testutil"
)

type memoryProvider struct {
	values map[string]string
	reads  int
	failOn string
}

func (m *memoryProvider) Get(_ context.Context, key string) (string, error) {
	m.reads++
	if key == m.failOn {
		return "", errors.New("keychain locked")
	}
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, credentials.ErrNotFound)
	}
	return v, nil
}

func (m *memoryProvider) Set(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func fullProvider() *memoryProvider {
	return &memoryProvider{values: map[string]string{
		credentials.KeyAccountID: testutil.FakeAccountID,
		credentials.KeyZoneID:    testutil.FakeZoneID,
		credentials.KeyTunnelID:  testutil.FakeTunnelID,
		credentials.KeyAPIToken:  testutil.FakeAPIToken,
	}}
}

func TestOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testutil.FakeAPIToken {
			t.Error("client built without stored token")
		}
		_, _ = w.Write([]byte(`{"success":true,"errors":[],"result":{}}`))
	}))
	defer server.Close()

	provider := fullProvider()
	s, err := Open(context.Background(), provider, Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if provider.reads != 4 {
		t.Errorf("provider read %d times, want 4", provider.reads)
	}
	if s.Credentials.TunnelID != testutil.FakeTunnelID {
		t.Errorf("TunnelID = %q", s.Credentials.TunnelID)
	}
	if s.Client.TunnelID() != testutil.FakeTunnelID {
		t.Errorf("client TunnelID = %q", s.Client.TunnelID())
	}
	if err := s.Client.VerifyConnection(context.Background()); err != nil {
		t.Errorf("VerifyConnection failed: %v", err)
	}
}

func TestOpenMissingCredential(t *testing.T) {
	provider := fullProvider()
	delete(provider.values, credentials.KeyTunnelID)

	_, err := Open(context.Background(), provider, Options{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if !strings.Contains(err.Error(), credentials.KeyTunnelID) {
		t.Errorf("error should name the missing key: %v", err)
	}
}

func TestOpenProviderFailure(t *testing.T) {
	provider := fullProvider()
	provider.failOn = credentials.KeyZoneID

	_, err := Open(context.Background(), provider, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotConfigured) {
		t.Error("provider failure must not be reported as missing setup")
	}
}

func TestOpenBlankCredential(t *testing.T) {
	provider := fullProvider()
	provider.values[credentials.KeyAPIToken] = "   "

	_, err := Open(context.Background(), provider, Options{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSave(t *testing.T) {
	provider := &memoryProvider{values: map[string]string{}}
	creds := cloudflare.Credentials{
		AccountID: testutil.FakeAccountID,
		ZoneID:    testutil.FakeZoneID,
		TunnelID:  testutil.FakeTunnelID,
		APIToken:  testutil.FakeAPIToken,
	}

	if err := Save(context.Background(), provider, creds); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(context.Background(), provider)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != creds {
		t.Errorf("Load() = %+v, want %+v", loaded, creds)
	}
}

func TestSaveRejectsEmptyFields(t *testing.T) {
	provider := &memoryProvider{values: map[string]string{}}

	err := Save(context.Background(), provider, cloudflare.Credentials{AccountID: testutil.FakeAccountID})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"ZoneID", "TunnelID", "APIToken"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q should mention %s", err, field)
		}
	}
	if len(provider.values) != 0 {
		t.Error("nothing should be stored when validation fails")
	}
}
