package validation

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func decode(t *testing.T, body string) CreateRecordRequest {
	t.Helper()
	var req CreateRecordRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal %s: %v", body, err)
	}
	return req
}

// TestValidateCreateRecord verifies presence checks for date and location and
// that notes stays optional.
func TestValidateCreateRecord(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{name: "all fields", body: `{"date":"2024-01-01","location":"Paris","notes":"hi"}`},
		{name: "notes omitted", body: `{"date":"2024-01-01","location":"Paris"}`},
		{name: "free-form date", body: `{"date":"next tuesday","location":"Paris"}`},
		{name: "missing date", body: `{"location":"Paris"}`, wantFields: []string{"date"}},
		{name: "null location", body: `{"date":"2024-01-01","location":null}`, wantFields: []string{"location"}},
		{name: "empty body", body: `{}`, wantFields: []string{"date", "location"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCreateRecord(decode(t, tt.body))
			if tt.wantFields == nil {
				if err != nil {
					t.Fatalf("ValidateCreateRecord() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrMissingField) {
				t.Fatalf("ValidateCreateRecord() error = %v, want ErrMissingField", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("error %v is not *FieldError", err)
			}
			if !reflect.DeepEqual(fe.Fields, tt.wantFields) {
				t.Errorf("Fields = %v, want %v", fe.Fields, tt.wantFields)
			}
		})
	}
}

func TestCreateRecordRequest_NotesOrEmpty(t *testing.T) {
	if got := decode(t, `{"date":"d","location":"l"}`).NotesOrEmpty(); got != "" {
		t.Errorf("omitted notes = %q, want empty", got)
	}
	if got := decode(t, `{"date":"d","location":"l","notes":null}`).NotesOrEmpty(); got != "" {
		t.Errorf("null notes = %q, want empty", got)
	}
	if got := decode(t, `{"date":"d","location":"l","notes":"bring umbrella"}`).NotesOrEmpty(); got != "bring umbrella" {
		t.Errorf("notes = %q, want bring umbrella", got)
	}
}

func TestFieldError_Error(t *testing.T) {
	err := &FieldError{Fields: []string{"date", "location"}}
	if got := err.Error(); got != "missing required field: date, location" {
		t.Errorf("Error() = %q", got)
	}
}
