package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rostilos/CodeCrow-sub011/pkg/apierr"
)

func TestProjectHandlerCreateInvalidBody(t *testing.T) {
	ph := &ProjectHandler{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", bytes.NewReader([]byte("invalid")))
	w := httptest.NewRecorder()

	ph.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	var resp apierr.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != apierr.CodeInvalidRequestBody {
		t.Errorf("expected code %s, got %s", apierr.CodeInvalidRequestBody, resp.Error.Code)
	}
}

func TestProjectHandlerCreateInvalidSlug(t *testing.T) {
	ph := &ProjectHandler{}
	body, _ := json.Marshal(map[string]string{
		"name": "My Project",
		"slug": "",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", bytes.NewReader(body))
	w := httptest.NewRecorder()

	ph.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	var resp apierr.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != apierr.CodeSlugRequired {
		t.Errorf("expected code %s, got %s", apierr.CodeSlugRequired, resp.Error.Code)
	}
}

func TestProjectHandlerCreateInvalidName(t *testing.T) {
	ph := &ProjectHandler{}
	body, _ := json.Marshal(map[string]string{
		"name": "",
		"slug": "valid-slug",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", bytes.NewReader(body))
	w := httptest.NewRecorder()

	ph.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	var resp apierr.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != apierr.CodeNameRequired {
		t.Errorf("expected code %s, got %s", apierr.CodeNameRequired, resp.Error.Code)
	}
}

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		slug     string
		wantCode apierr.Code
	}{
		{"", apierr.CodeSlugRequired},
		{"UPPER", apierr.CodeSlugInvalid},
		{"-leading", apierr.CodeSlugInvalid},
		{"trailing-", apierr.CodeSlugInvalid},
		{"ab", apierr.CodeSlugInvalid},
		{"valid-slug", ""},
		{"a1b", ""},
	}

	for _, tt := range tests {
		err := validateSlug(tt.slug)
		if tt.wantCode == "" {
			if err != nil {
				t.Errorf("validateSlug(%q) = %v, want nil", tt.slug, err)
			}
			continue
		}
		if err == nil || err.Code() != tt.wantCode {
			t.Errorf("validateSlug(%q) = %v, want code %s", tt.slug, err, tt.wantCode)
		}
	}
}
