package errors

import "testing"

func TestValidateLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    int
		max      int
		wantCode Code
	}{
		{"Valid", 5, 30, ""},
		{"Zero", 0, 30, ""},
		{"AtMax", 30, 30, ""},
		{"Negative", -1, 30, ErrCodeRefinementBounds},
		{"TooDeep", 31, 30, ErrCodeRefinementBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLevel(tt.level, tt.max)
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("ValidateLevel(%d, %d) = %v, want nil", tt.level, tt.max, err)
				}
				return
			}
			if GetCode(err) != tt.wantCode {
				t.Errorf("ValidateLevel(%d, %d) code = %v, want %v", tt.level, tt.max, GetCode(err), tt.wantCode)
			}
		})
	}
}

func TestValidateMeshOrder(t *testing.T) {
	for _, order := range []int{2, 3} {
		if err := ValidateMeshOrder(order); err != nil {
			t.Errorf("ValidateMeshOrder(%d) = %v, want nil", order, err)
		}
	}
	for _, order := range []int{0, 1, 4, -2} {
		if !Is(ValidateMeshOrder(order), ErrCodeInvalidInput) {
			t.Errorf("ValidateMeshOrder(%d) should fail with INVALID_INPUT", order)
		}
	}
}
