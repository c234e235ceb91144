package handler

import (
	"strings"
	"testing"
)

func TestValidator_Messages(t *testing.T) {
	v := NewValidator()

	cases := []struct {
		name string
		req  registerRequest
		want string
	}{
		{"blank password", registerRequest{Username: "alice", Email: "a@example.com", Password: "  "}, "password must not be blank"},
		{"password over 72 bytes", registerRequest{Username: "alice", Email: "a@example.com", Password: strings.Repeat("é", 37)}, "password must be at most 72 bytes"},
		{"missing username", registerRequest{Email: "a@example.com", Password: "pw"}, "username is required"},
		{"bad email", registerRequest{Username: "alice", Email: "nope", Password: "pw"}, "email must be a valid email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(&tc.req)
			if err == nil || err.Error() != tc.want {
				t.Fatalf("expected %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidator_AcceptsValidRequests(t *testing.T) {
	v := NewValidator()

	if err := v.Validate(&registerRequest{Username: "alice", Email: "a@example.com", Password: strings.Repeat("x", 72)}); err != nil {
		t.Errorf("72-byte password should pass: %v", err)
	}
	if err := v.Validate(&loginRequest{Username: "alice", Password: " pw "}); err != nil {
		t.Errorf("password with surrounding spaces should pass: %v", err)
	}
}
