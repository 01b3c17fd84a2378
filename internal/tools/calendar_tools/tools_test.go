package calendar_tools

import (
	"testing"

	"github.com/calendai/calendai/internal/user"
)

func TestGetUserFromArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		expected string
	}{
		{
			name:     "no user provided",
			args:     map[string]interface{}{},
			expected: "default",
		},
		{
			name: "user provided",
			args: map[string]interface{}{
				"user": "test-user",
			},
			expected: "test-user",
		},
		{
			name: "empty user string",
			args: map[string]interface{}{
				"user": "",
			},
			expected: "default",
		},
		{
			name: "user with other args",
			args: map[string]interface{}{
				"user": "work-user",
				"date": "2026-05-04",
			},
			expected: "work-user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getUserFromArgs(tt.args)
			if result != tt.expected {
				t.Errorf("getUserFromArgs() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestGetUserFromArgs_NonStringType(t *testing.T) {
	args := map[string]interface{}{
		"user": 123, // wrong type
	}

	result := getUserFromArgs(args)
	if result != "default" {
		t.Errorf("Expected 'default' for non-string user, got %s", result)
	}
}

func TestResolveUser(t *testing.T) {
	store := user.NewMemoryStore()
	ctx := t.Context()

	if err := store.Save(ctx, &user.User{ID: "linked", CalendarConnected: true}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, &user.User{ID: "unlinked"}); err != nil {
		t.Fatal(err)
	}

	deps := Deps{Store: store}

	if _, err := resolveUser(ctx, map[string]interface{}{"user": "linked"}, deps); err != nil {
		t.Errorf("expected linked user to resolve, got %v", err)
	}
	if _, err := resolveUser(ctx, map[string]interface{}{"user": "unlinked"}, deps); err == nil {
		t.Error("expected error for user without a connected calendar")
	}
	if _, err := resolveUser(ctx, map[string]interface{}{"user": "ghost"}, deps); err == nil {
		t.Error("expected error for unknown user")
	}
}
