package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/assetflow/errors"
)

func TestValidatorRequired(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"non-empty", "styles", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New().Required("name", tc.value)
			if v.HasErrors() != tc.wantErr {
				t.Errorf("Required(%q) hasErrors = %v, want %v", tc.value, v.HasErrors(), tc.wantErr)
			}
		})
	}
}

func TestValidatorGlob(t *testing.T) {
	tests := []struct {
		pattern string
		wantErr bool
	}{
		{"styles/**/*.scss", false},
		{"!**/_*.scss", false},
		{"[abc", true},
		{"", true},
		{"!", true},
	}
	for _, tc := range tests {
		t.Run(tc.pattern, func(t *testing.T) {
			v := New().Glob("src", tc.pattern)
			if v.HasErrors() != tc.wantErr {
				t.Errorf("Glob(%q) hasErrors = %v, want %v (%v)", tc.pattern, v.HasErrors(), tc.wantErr, v.Errors())
			}
		})
	}
}

func TestValidatorUniqueAndNotEmpty(t *testing.T) {
	v := New().
		Unique("deps", []string{"a", "b", "a"}).
		NotEmpty("targets", nil)
	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %v", v.Errors())
	}
	if !strings.Contains(v.Errors()[0].Message, `"a"`) {
		t.Errorf("expected duplicate to be named, got %q", v.Errors()[0].Message)
	}
}

func TestValidatorRange(t *testing.T) {
	if New().Range("port", 8080, 0, 65535).HasErrors() {
		t.Error("8080 should be valid")
	}
	if !New().Range("port", 70000, 0, 65535).HasErrors() {
		t.Error("70000 should be invalid")
	}
	if !New().Min("concurrency", -1, 0).HasErrors() {
		t.Error("-1 should be below min")
	}
	if !New().Max("attempts", 11, 10).HasErrors() {
		t.Error("11 should be above max")
	}
}

func TestValidatorOneOf(t *testing.T) {
	allowed := []string{"major", "minor", "patch"}
	if New().OneOf("bump_type", "minor", allowed).HasErrors() {
		t.Error("minor should be allowed")
	}
	if New().OneOf("bump_type", "", allowed).HasErrors() {
		t.Error("empty value should be skipped")
	}
	v := New().OneOf("bump_type", "huge", allowed)
	if !v.HasErrors() || !strings.Contains(v.Errors()[0].Message, "major, minor, patch") {
		t.Errorf("unexpected errors %v", v.Errors())
	}
}

func TestValidatorCustomAndMerge(t *testing.T) {
	inner := New().Custom(false, "use", "unknown stage")
	outer := New().Merge("tasks[2].stages[0]", inner)
	if outer.Errors()[0].Field != "tasks[2].stages[0].use" {
		t.Errorf("unexpected field %q", outer.Errors()[0].Field)
	}
}

func TestValidatorValidate(t *testing.T) {
	if New().Validate() != nil || New().Err() != nil {
		t.Fatal("expected nil for empty validator")
	}

	v := New().Required("name", "").Min("concurrency", -1, 0)
	appErr := v.Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	if !strings.Contains(appErr.Message, "name: is required") || !strings.Contains(appErr.Message, "concurrency") {
		t.Errorf("unexpected message %q", appErr.Message)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Errorf("expected 2 field errors in details, got %v", appErr.Details["fields"])
	}
}

type serveConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"gte=0,lte=65535"`
}

type rootConfig struct {
	Format string      `mapstructure:"format" validate:"oneof=json console"`
	Serve  serveConfig `yaml:"serve"`
}

func TestStructValidateValid(t *testing.T) {
	cfg := rootConfig{Format: "json", Serve: serveConfig{Host: "localhost", Port: 9000}}
	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	cfg := rootConfig{Format: "xml", Serve: serveConfig{Port: 70000}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"format: must be one of: json console", "serve.host: is required", "serve.port: must be less than or equal to 65535"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestRequiredFunc(t *testing.T) {
	if err := Required("name", "styles"); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if err := Required("name", ""); err == nil {
		t.Error("expected error")
	}
}
