package cmd

import (
	"reflect"
	"testing"
)

func TestParseAPITokens(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected map[string]string
		wantErr  bool
	}{
		{
			name:     "empty input",
			input:    nil,
			expected: map[string]string{},
		},
		{
			name:     "single mapping",
			input:    []string{"secret-token=alice"},
			expected: map[string]string{"secret-token": "alice"},
		},
		{
			name:     "multiple mappings",
			input:    []string{"token-a=alice", "token-b=bob"},
			expected: map[string]string{"token-a": "alice", "token-b": "bob"},
		},
		{
			name:     "whitespace around pair",
			input:    []string{"  token-a = alice  "},
			expected: map[string]string{"token-a": "alice"},
		},
		{
			name:     "empty entries skipped",
			input:    []string{"", "token-a=alice", "  "},
			expected: map[string]string{"token-a": "alice"},
		},
		{
			name:    "missing separator",
			input:   []string{"token-without-user"},
			wantErr: true,
		},
		{
			name:    "empty user",
			input:   []string{"token-a="},
			wantErr: true,
		},
		{
			name:    "empty token",
			input:   []string{"=alice"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseAPITokens(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseAPITokens(%v) expected error, got %v", tt.input, result)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAPITokens(%v) unexpected error: %v", tt.input, err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("parseAPITokens(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestBuildUserStore(t *testing.T) {
	store, err := buildUserStore("")
	if err != nil {
		t.Fatalf("unexpected error for in-memory store: %v", err)
	}
	if store == nil {
		t.Fatal("expected in-memory store")
	}

	dir := t.TempDir()
	store, err = buildUserStore(dir)
	if err != nil {
		t.Fatalf("unexpected error for file store: %v", err)
	}
	if store == nil {
		t.Fatal("expected file store")
	}
}

func TestGoogleConfigFromFlags(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")

	if _, err := googleConfigFromFlags("", "", ""); err == nil {
		t.Error("expected error when credentials are missing")
	}

	config, err := googleConfigFromFlags("client-id", "client-secret", "https://example.com/callback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.ClientID != "client-id" || config.ClientSecret != "client-secret" {
		t.Errorf("unexpected config: %+v", config)
	}

	t.Setenv("GOOGLE_CLIENT_ID", "env-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "env-secret")
	config, err = googleConfigFromFlags("", "", "")
	if err != nil {
		t.Fatalf("unexpected error with env credentials: %v", err)
	}
	if config.ClientID != "env-id" {
		t.Errorf("expected env client ID, got %q", config.ClientID)
	}
}
