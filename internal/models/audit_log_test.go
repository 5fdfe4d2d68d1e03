package models

import (
	"testing"
)

func TestClassifyInputField(t *testing.T) {
	tests := []struct {
		field    string
		expected string
	}{
		{"email", InputFailureEmail},
		{"Password", InputFailurePassword},
		{"new_password", InputFailurePassword},
		{"CurrentPassword", InputFailurePassword},
		{"Name", InputFailureValidation},
		{"question_1", InputFailureValidation},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			if got := ClassifyInputField(tt.field); got != tt.expected {
				t.Errorf("ClassifyInputField(%q) = %q, want %q", tt.field, got, tt.expected)
			}
		})
	}
}

func TestFailureMetadata_ScanValue(t *testing.T) {
	original := FailureMetadata{"route": "/audit/lockouts", "status": float64(403)}

	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value() failed: %v", err)
	}

	var scanned FailureMetadata
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if scanned["route"] != "/audit/lockouts" || scanned["status"] != float64(403) {
		t.Errorf("unexpected metadata after scan: %v", scanned)
	}

	var empty FailureMetadata
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if empty == nil {
		t.Error("Scan(nil) should produce an empty map")
	}

	if err := empty.Scan(42); err == nil {
		t.Error("Scan of a non-JSON value should fail")
	}
}
