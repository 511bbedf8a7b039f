package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alekspetrov/talpa/internal/testutil"
)

func testCredentials() Credentials {
	return Credentials{
		AccountID: testutil.FakeAccountID,
		ZoneID:    testutil.FakeZoneID,
		TunnelID:  testutil.FakeTunnelID,
		APIToken:  testutil.FakeAPIToken,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(testCredentials(), WithBaseURL(server.URL))
}

func writeJSON(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(testCredentials())
	if client.baseURL != BaseURL {
		t.Errorf("client.baseURL = %s, want %s", client.baseURL, BaseURL)
	}
	if client.RecordTarget() != testutil.FakeTunnelID+".cfargotunnel.com" {
		t.Errorf("RecordTarget() = %s", client.RecordTarget())
	}
	if client.httpClient.Timeout != 0 {
		t.Errorf("default timeout = %v, want none", client.httpClient.Timeout)
	}
}

func TestNewClientOptions(t *testing.T) {
	client := NewClient(testCredentials(),
		WithBaseURL("https://cf.test/"),
		WithRoutingDomain("tunnels.test"),
	)
	if client.baseURL != "https://cf.test" {
		t.Errorf("client.baseURL = %s, want no trailing slash", client.baseURL)
	}
	if client.RecordTarget() != testutil.FakeTunnelID+".tunnels.test" {
		t.Errorf("RecordTarget() = %s", client.RecordTarget())
	}
}

func TestVerifyConnection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/zones/"+testutil.FakeZoneID {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer "+testutil.FakeAPIToken {
			t.Error("missing or incorrect Authorization header")
		}
		writeJSON(t, w, `{"success":true,"errors":[],"result":{"id":"test-zone-id"}}`)
	})

	if err := client.VerifyConnection(context.Background()); err != nil {
		t.Fatalf("VerifyConnection failed: %v", err)
	}
}

func TestVerifyConnectionAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		writeJSON(t, w, `{"success":false,"errors":[{"code":9109,"message":"Invalid access token"},{"code":1,"message":"Unauthorized"}],"result":null}`)
	})

	err := client.VerifyConnection(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message() != "Invalid access token, Unauthorized" {
		t.Errorf("Message() = %q", apiErr.Message())
	}
	if apiErr.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", apiErr.Status)
	}
}

func TestAPIErrorWithoutMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, `{"success":false,"errors":[]}`)
	})

	err := client.VerifyConnection(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message() != "" {
		t.Errorf("Message() = %q, want empty", apiErr.Message())
	}
	if !strings.Contains(apiErr.Error(), "verify connection") {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestNonJSONResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	err := client.VerifyConnection(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", apiErr.Status)
	}
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(testCredentials(), WithBaseURL(url))
	err := client.VerifyConnection(context.Background())

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if transportErr.Unwrap() == nil {
		t.Error("TransportError should wrap the cause")
	}
}

func TestGetIngressConfig(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		want := "/accounts/" + testutil.FakeAccountID + "/cfd_tunnel/" + testutil.FakeTunnelID + "/configurations"
		if r.URL.Path != want {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		writeJSON(t, w, `{"success":true,"errors":[],"result":{"tunnel_id":"test-tunnel-id","version":3,"config":{"ingress":[{"hostname":"a.example.com","service":"http://localhost:8080","originRequest":{"noTLSVerify":true}},{"service":"http_status:404"}],"warp-routing":{"enabled":false}}}}`)
	})

	cfg, err := client.GetIngressConfig(context.Background())
	if err != nil {
		t.Fatalf("GetIngressConfig failed: %v", err)
	}
	if len(cfg.Ingress) != 2 {
		t.Fatalf("len(Ingress) = %d, want 2", len(cfg.Ingress))
	}
	if cfg.Ingress[0].Hostname != "a.example.com" {
		t.Errorf("Ingress[0].Hostname = %q", cfg.Ingress[0].Hostname)
	}
	if !cfg.Ingress[1].IsCatchAll() {
		t.Error("Ingress[1] should be the catch-all")
	}
	if _, ok := cfg.Extra.Get("warp-routing"); !ok {
		t.Error("config-level extras were dropped")
	}
}

func TestGetIngressConfigMissingPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"null result", `{"success":true,"errors":[],"result":null}`},
		{"absent result", `{"success":true,"errors":[]}`},
		{"null config", `{"success":true,"errors":[],"result":{"config":null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.body)
			})

			_, err := client.GetIngressConfig(context.Background())
			if !errors.Is(err, ErrMissingPayload) {
				t.Errorf("expected ErrMissingPayload, got %v", err)
			}
		})
	}
}

func TestReplaceIngressConfig(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("missing Content-Type header")
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = strings.TrimSpace(string(b))
		writeJSON(t, w, `{"success":true,"errors":[],"result":{}}`)
	})

	cfg := &TunnelConfig{
		Ingress: []IngressRule{
			{Hostname: "a.example.com", Service: "http://localhost:8080?x=1&y=2"},
			{Service: "http_status:404", Extra: Fields{{Key: "originRequest", Value: json.RawMessage(`{"noTLSVerify":true}`)}}},
		},
	}
	if err := client.ReplaceIngressConfig(context.Background(), cfg); err != nil {
		t.Fatalf("ReplaceIngressConfig failed: %v", err)
	}

	want := `{"config":{"ingress":[{"hostname":"a.example.com","service":"http://localhost:8080?x=1&y=2"},{"service":"http_status:404","originRequest":{"noTLSVerify":true}}]}}`
	if gotBody != want {
		t.Errorf("request body:\n got %s\nwant %s", gotBody, want)
	}
}

func TestReplaceIngressConfigRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, `{"success":false,"errors":[{"code":1056,"message":"Invalid ingress"}]}`)
	})

	err := client.ReplaceIngressConfig(context.Background(), &TunnelConfig{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Error() != "failed to update tunnel config: Invalid ingress" {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestCreateDNSRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/zones/"+testutil.FakeZoneID+"/dns_records" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body["type"] != "CNAME" {
			t.Errorf("type = %v, want CNAME", body["type"])
		}
		if body["name"] != "app.example.com" {
			t.Errorf("name = %v", body["name"])
		}
		if body["content"] != testutil.FakeTunnelID+".cfargotunnel.com" {
			t.Errorf("content = %v", body["content"])
		}
		if body["proxied"] != true {
			t.Errorf("proxied = %v, want true", body["proxied"])
		}
		writeJSON(t, w, `{"success":true,"errors":[],"result":{"id":"rec-1"}}`)
	})

	if err := client.CreateDNSRecord(context.Background(), "app.example.com"); err != nil {
		t.Fatalf("CreateDNSRecord failed: %v", err)
	}
}

func TestFindDNSRecordID(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantID  string
		wantErr error
	}{
		{"single match", `{"success":true,"errors":[],"result":[{"id":"rec-1"}]}`, "rec-1", nil},
		{"no match", `{"success":true,"errors":[],"result":[]}`, "", nil},
		{"null result", `{"success":true,"errors":[],"result":null}`, "", nil},
		{"multiple matches", `{"success":true,"errors":[],"result":[{"id":"rec-1"},{"id":"rec-2"}]}`, "", ErrAmbiguousRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("type") != "CNAME" {
					t.Errorf("type query = %q", r.URL.Query().Get("type"))
				}
				if r.URL.Query().Get("name") != "app.example.com" {
					t.Errorf("name query = %q", r.URL.Query().Get("name"))
				}
				writeJSON(t, w, tt.body)
			})

			id, err := client.FindDNSRecordID(context.Background(), "app.example.com")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				var ambiguous *AmbiguousRecordError
				if !errors.As(err, &ambiguous) || len(ambiguous.IDs) != 2 {
					t.Errorf("expected both ids in error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindDNSRecordID failed: %v", err)
			}
			if id != tt.wantID {
				t.Errorf("id = %q, want %q", id, tt.wantID)
			}
		})
	}
}

func TestDeleteDNSRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if r.URL.Path != "/zones/"+testutil.FakeZoneID+"/dns_records/rec-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		writeJSON(t, w, `{"success":true,"errors":[],"result":{"id":"rec-1"}}`)
	})

	if err := client.DeleteDNSRecord(context.Background(), "rec-1"); err != nil {
		t.Fatalf("DeleteDNSRecord failed: %v", err)
	}
}
