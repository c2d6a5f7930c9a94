package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"resumate/internal/parser"
)

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(body)
}

func newTestValidator(t *testing.T, handler http.HandlerFunc) (*Validator, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	v := NewValidator(Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, server.Client(), nil)
	return v, server
}

func TestValidateParsesEnhancedEntities(t *testing.T) {
	payload := `{
		"personalInfo": {"fullName": "Jane Doe", "email": "jane@example.com"},
		"workExperience": [{"title": "Engineer", "company": "Acme"}],
		"education": [],
		"skills": {"technical": ["go"], "softSkills": [], "languages": [], "certifications": []},
		"confidenceScores": {"personalInfo": 95, "workExperience": 88, "education": 90, "skills": 92}
	}`

	var gotAuth string
	v, _ := newTestValidator(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(payload)))
	})

	result, err := v.Validate(context.Background(), "resume text", parser.EmptyEntitySet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization header: got %q", gotAuth)
	}
	if result.PersonalInfo.FullName != "Jane Doe" {
		t.Errorf("full name: got %q", result.PersonalInfo.FullName)
	}
	if got := result.AIConfidence[parser.SectionSkills]; got != 92 {
		t.Errorf("skills ai confidence: got %.2f, want 92", got)
	}
}

func TestValidateAcceptsMarkdownFencedJSON(t *testing.T) {
	content := "```json\n{\"confidenceScores\": {\"personalInfo\": 80, \"workExperience\": 70, \"education\": 60, \"skills\": 50}}\n```"
	v, _ := newTestValidator(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionBody(content)))
	})

	result, err := v.Validate(context.Background(), "text", parser.EmptyEntitySet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.AIConfidence[parser.SectionPersonalInfo]; got != 80 {
		t.Errorf("personalInfo ai confidence: got %.2f, want 80", got)
	}
}

func TestValidateRejectsNonJSONContent(t *testing.T) {
	v, _ := newTestValidator(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionBody("I could not parse this resume, sorry!")))
	})

	_, err := v.Validate(context.Background(), "text", parser.EmptyEntitySet())
	if !errors.Is(err, parser.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestValidateRejectsMissingConfidence(t *testing.T) {
	v, _ := newTestValidator(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionBody(`{"personalInfo": {"fullName": "Jane"}}`)))
	})

	_, err := v.Validate(context.Background(), "text", parser.EmptyEntitySet())
	if !errors.Is(err, parser.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestValidateNon2xxIsTransportError(t *testing.T) {
	v, _ := newTestValidator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := v.Validate(context.Background(), "text", parser.EmptyEntitySet())
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
	if errors.Is(err, parser.ErrMalformedResponse) {
		t.Error("http failure must not be classified as malformed response")
	}
}

func TestValidateTruncatesLongInput(t *testing.T) {
	var gotLen int
	v, _ := newTestValidator(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotLen = len(req.Messages[1].Content)
		_, _ = w.Write([]byte(completionBody(`{"confidenceScores": {"personalInfo": 1, "workExperience": 1, "education": 1, "skills": 1}}`)))
	})

	long := make([]byte, 40000)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := v.Validate(context.Background(), string(long), parser.EmptyEntitySet()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLen > DefaultMaxInputChars+1000 {
		t.Errorf("input not truncated: user message is %d chars", gotLen)
	}
}
