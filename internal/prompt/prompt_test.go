package prompt

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildContainsInputsForAllKinds(t *testing.T) {
	resume := "Experienced manager with 5 years in sales, led team of 10"
	job := "Seeking sales manager with leadership experience"

	for _, kind := range Kinds() {
		got, err := Build(resume, job, kind)
		if err != nil {
			t.Fatalf("Build(%s): %v", kind, err)
		}
		if got == "" {
			t.Fatalf("Build(%s): empty prompt", kind)
		}
		if !strings.Contains(got, resume) {
			t.Errorf("Build(%s): prompt missing resume text", kind)
		}
		if !strings.Contains(got, job) {
			t.Errorf("Build(%s): prompt missing job text", kind)
		}
		if strings.Contains(got, "{{") {
			t.Errorf("Build(%s): unexpanded placeholder in prompt", kind)
		}
	}
}

func TestBuildATSScoreMentionsATS(t *testing.T) {
	got, err := Build("resume", "job", KindATSScore)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(got, "ATS") {
		t.Errorf("ATS Score prompt does not mention ATS")
	}
}

func TestBuildUnknownKind(t *testing.T) {
	got, err := Build("resume", "job", Kind("Career Horoscope"))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty string alongside error, got %q", got)
	}
}

func TestKindValid(t *testing.T) {
	for _, kind := range Kinds() {
		if !kind.Valid() {
			t.Errorf("Kind(%s).Valid() = false", kind)
		}
	}
	if Kind("").Valid() {
		t.Errorf("empty kind reported valid")
	}
}
