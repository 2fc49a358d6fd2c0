package security

import (
	"errors"
	"strings"
	"testing"
)

func TestReadBody(t *testing.T) {
	t.Parallel()

	data, err := ReadBody(strings.NewReader("12345"), 5)
	if err != nil || string(data) != "12345" {
		t.Fatalf("ReadBody = %q, %v", data, err)
	}
	if _, err := ReadBody(strings.NewReader("123456"), 5); !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("err = %v, want ErrBodyTooLarge", err)
	}
}

func TestValidateJSONDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		limit   int
		wantErr error
	}{
		{name: "flat", input: `{"message":"hi"}`, limit: 2},
		{name: "at limit", input: `{"a":[1]}`, limit: 2},
		{name: "too deep", input: `{"a":[{"b":1}]}`, limit: 2, wantErr: ErrJSONTooDeep},
		{name: "empty", input: ``, limit: 2},
		{name: "invalid", input: `{"a":`, limit: 2, wantErr: ErrInvalidJSON},
		{name: "default limit", input: strings.Repeat("[", 17) + strings.Repeat("]", 17), wantErr: ErrJSONTooDeep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateJSONDepth([]byte(tt.input), tt.limit)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var v struct {
		Message string `json:"message"`
	}
	if err := DecodeJSON([]byte(`{"message":"hi"}`), &v); err != nil || v.Message != "hi" {
		t.Fatalf("DecodeJSON = %+v, %v", v, err)
	}
	if err := DecodeJSON([]byte(`{"message":1}`), &v); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("err = %v, want ErrInvalidJSON", err)
	}
}
