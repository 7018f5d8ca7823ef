package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRequiredFlagsErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"read missing ip", []string{"read", "--la", "0x545"}, "required flag --ip not set"},
		{"read missing la", []string{"read", "--ip", "192.0.2.10"}, "required flag --la not set"},
		{"read bad la", []string{"read", "--ip", "192.0.2.10", "--la", "0xZZ"}, "invalid logical address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRoot(t, tt.args...)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestExplicitConfigMustExist(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := executeRoot(t, "read", "--config", missing, "--ip", "192.0.2.10", "--la", "545")
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("error: got %v", err)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udsinfo.yaml")

	out, err := executeRoot(t, "config", "init", "--output", path)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output: %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written config: %v", err)
	}
	if !strings.Contains(string(data), "tcp_port: 13400") {
		t.Errorf("written config missing defaults:\n%s", data)
	}

	if _, err := executeRoot(t, "config", "init", "--output", path); err == nil {
		t.Error("config init should refuse to overwrite")
	}
	if _, err := executeRoot(t, "config", "init", "--output", path, "--force"); err != nil {
		t.Errorf("config init --force failed: %v", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := executeRoot(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "udsinfo version dev\n") {
		t.Errorf("version output: %q", out)
	}
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := executeRoot(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, name := range []string{"read", "interactive", "history", "serve", "config", "version"} {
		if !strings.Contains(out, "  "+name) {
			t.Errorf("help missing %s:\n%s", name, out)
		}
	}
}

func TestReadHelpArg(t *testing.T) {
	out, err := executeRoot(t, "read", "help")
	if err != nil {
		t.Fatalf("read help failed: %v", err)
	}
	if !strings.Contains(out, "--la") {
		t.Errorf("read help missing flags:\n%s", out)
	}
}
