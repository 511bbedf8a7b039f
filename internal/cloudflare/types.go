// Package cloudflare is a thin typed client for the two Cloudflare resources
// a tunnel route spans: the tunnel's ingress configuration and the zone's
// DNS records.
package cloudflare

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Credentials identifies the account, zone and tunnel a client operates on.
type Credentials struct {
	AccountID string `validate:"required"`
	ZoneID    string `validate:"required"`
	TunnelID  string `validate:"required"`
	APIToken  string `validate:"required"`
}

// Field is one JSON object member whose value is kept as raw bytes.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Fields is an ordered bag of JSON members this package does not interpret.
// Ingress updates replace the whole configuration, so anything not carried
// here would be deleted remotely.
type Fields []Field

// Get returns the raw value stored under key.
func (f Fields) Get(key string) (json.RawMessage, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return nil, false
}

// IngressRule is one entry of a tunnel's ordered ingress list. A rule with
// an empty Hostname is the catch-all.
type IngressRule struct {
	Hostname string
	Service  string
	Extra    Fields
}

// IsCatchAll reports whether the rule matches every hostname.
func (r IngressRule) IsCatchAll() bool {
	return r.Hostname == ""
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *IngressRule) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("ingress rule: %w", err)
	}

	rule := IngressRule{}
	for _, f := range fields {
		switch f.Key {
		case "hostname":
			if err := json.Unmarshal(f.Value, &rule.Hostname); err != nil {
				return fmt.Errorf("ingress rule hostname: %w", err)
			}
		case "service":
			if err := json.Unmarshal(f.Value, &rule.Service); err != nil {
				return fmt.Errorf("ingress rule service: %w", err)
			}
		default:
			rule.Extra = append(rule.Extra, f)
		}
	}

	*r = rule
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r IngressRule) MarshalJSON() ([]byte, error) {
	var w objectWriter
	if r.Hostname != "" {
		if err := w.member("hostname", r.Hostname); err != nil {
			return nil, err
		}
	}
	if err := w.member("service", r.Service); err != nil {
		return nil, err
	}
	if err := w.raw(r.Extra); err != nil {
		return nil, err
	}
	return w.close(), nil
}

// TunnelConfig is the `config` object of a remotely managed tunnel.
type TunnelConfig struct {
	Ingress []IngressRule
	Extra   Fields
}

// Clone returns a copy whose ingress slice can be mutated independently.
func (c *TunnelConfig) Clone() *TunnelConfig {
	out := &TunnelConfig{
		Ingress: make([]IngressRule, len(c.Ingress)),
		Extra:   c.Extra,
	}
	copy(out.Ingress, c.Ingress)
	return out
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *TunnelConfig) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("tunnel config: %w", err)
	}

	cfg := TunnelConfig{}
	for _, f := range fields {
		if f.Key == "ingress" {
			if err := json.Unmarshal(f.Value, &cfg.Ingress); err != nil {
				return fmt.Errorf("tunnel config ingress: %w", err)
			}
			continue
		}
		cfg.Extra = append(cfg.Extra, f)
	}

	*c = cfg
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c TunnelConfig) MarshalJSON() ([]byte, error) {
	ingress := c.Ingress
	if ingress == nil {
		ingress = []IngressRule{}
	}

	var w objectWriter
	if err := w.member("ingress", ingress); err != nil {
		return nil, err
	}
	if err := w.raw(c.Extra); err != nil {
		return nil, err
	}
	return w.close(), nil
}

// decodeObject splits a JSON object into its members in document order.
func decodeObject(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var fields Fields
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("member %q: %w", key, err)
		}
		fields = append(fields, Field{Key: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

type objectWriter struct {
	buf bytes.Buffer
	n   int
}

func (w *objectWriter) key(k string) error {
	if w.n == 0 {
		w.buf.WriteByte('{')
	} else {
		w.buf.WriteByte(',')
	}
	w.n++

	b, err := json.Marshal(k)
	if err != nil {
		return err
	}
	w.buf.Write(b)
	w.buf.WriteByte(':')
	return nil
}

func (w *objectWriter) member(k string, v any) error {
	b, err := marshalNoEscape(v)
	if err != nil {
		return fmt.Errorf("member %q: %w", k, err)
	}
	if err := w.key(k); err != nil {
		return err
	}
	w.buf.Write(b)
	return nil
}

func (w *objectWriter) raw(fields Fields) error {
	for _, f := range fields {
		if err := w.key(f.Key); err != nil {
			return err
		}
		if len(f.Value) == 0 {
			w.buf.WriteString("null")
			continue
		}
		w.buf.Write(f.Value)
	}
	return nil
}

// marshalNoEscape keeps '&', '<' and '>' literal; service URLs carry query strings.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (w *objectWriter) close() []byte {
	if w.n == 0 {
		w.buf.WriteByte('{')
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes()
}
