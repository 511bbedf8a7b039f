package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func findCommand(t *testing.T, root *cobra.Command, name string) *cobra.Command {
	t.Helper()
	cmd, _, err := root.Find([]string{name})
	if err != nil {
		t.Fatalf("command %q not found: %v", name, err)
	}
	return cmd
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	tests := []struct {
		lookup string
		want   string
	}{
		{"setup", "setup"},
		{"dig", "dig"},
		{"add", "dig"},
		{"plug", "plug"},
		{"rm", "plug"},
		{"remove", "plug"},
		{"list", "list"},
		{"ls", "list"},
		{"verify", "verify"},
		{"doctor", "doctor"},
		{"version", "version"},
	}

	for _, tt := range tests {
		t.Run(tt.lookup, func(t *testing.T) {
			cmd := findCommand(t, root, tt.lookup)
			if cmd.Name() != tt.want {
				t.Errorf("%q resolved to %q, want %q", tt.lookup, cmd.Name(), tt.want)
			}
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"config", "verbose"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag: --%s", name)
		}
	}
	if f := root.PersistentFlags().Lookup("verbose"); f != nil && f.Shorthand != "v" {
		t.Errorf("--verbose shorthand = %q, want v", f.Shorthand)
	}
}

func TestCommandFlags(t *testing.T) {
	root := newRootCmd()

	expected := map[string][]string{
		"setup": {"account-id", "zone-id", "tunnel-id", "api-token", "backend"},
		"plug":  {"record-id"},
		"list":  {"json"},
	}

	for name, flags := range expected {
		cmd := findCommand(t, root, name)
		for _, flag := range flags {
			if cmd.Flags().Lookup(flag) == nil {
				t.Errorf("%s: missing flag --%s", name, flag)
			}
		}
	}
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--short"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if out.String() != "talpa v"+version+"\n" {
		t.Errorf("output = %q", out.String())
	}

	root = newRootCmd()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "v"+version) || !strings.Contains(out.String(), "Cloudflare Tunnel") {
		t.Errorf("output = %q", out.String())
	}
}

func TestArgumentValidation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := [][]string{
		{"dig", "only-hostname.example.com"},
		{"plug"},
		{"list", "extra"},
	}

	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			root := newRootCmd()
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(args)
			if err := root.Execute(); err == nil {
				t.Error("expected argument error")
			}
		})
	}
}
