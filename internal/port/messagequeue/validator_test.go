package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidTaskEvent(t *testing.T) {
	data := []byte(`{"task_id":"t1","project_id":"p1","title":"Buy milk","status":"todo"}`)
	for _, subject := range []string{SubjectTaskCreated, SubjectTaskUpdated, SubjectTaskDeleted} {
		if err := Validate(subject, data); err != nil {
			t.Fatalf("%s: unexpected error: %v", subject, err)
		}
	}
}

func TestValidateValidProjectEvent(t *testing.T) {
	data := []byte(`{"project_id":"p1","name":"Work"}`)
	for _, subject := range []string{SubjectProjectCreated, SubjectProjectUpdated, SubjectProjectDeleted, SubjectProjectSwitched} {
		if err := Validate(subject, data); err != nil {
			t.Fatalf("%s: unexpected error: %v", subject, err)
		}
	}
}

func TestValidateValidDataImported(t *testing.T) {
	data := []byte(`{"mode":"merge","projects":2,"tasks":14}`)
	if err := Validate(SubjectDataImported, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidTasksArchived(t *testing.T) {
	data := []byte(`{"project_id":"p1","archived":3}`)
	if err := Validate(SubjectTasksArchived, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	// Unknown subjects should pass (future-proof).
	data := []byte(`{"foo":"bar"}`)
	if err := Validate("unknown.subject", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	data := []byte(`{not valid json`)
	err := Validate(SubjectTaskCreated, data)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected 'invalid JSON' in error, got: %v", err)
	}
}

func TestValidateInvalidSchema(t *testing.T) {
	// Valid JSON but not an object: cannot unmarshal into the payload struct.
	data := []byte(`"just a string"`)
	err := Validate(SubjectTaskCreated, data)
	if err == nil {
		t.Fatal("expected schema validation error")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected 'schema validation failed' in error, got: %v", err)
	}
}

func TestValidateEmptyJSON(t *testing.T) {
	// Empty object is valid JSON and valid for all schemas (all fields are zero-value).
	data := []byte(`{}`)
	if err := Validate(SubjectTaskCreated, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
