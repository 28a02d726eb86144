package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotAuth string
	var gotBody CreateInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/demands" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Ref{ID: "d1", Protocol: "ZL-2026-0007"})
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "api-key")
	ref, err := client.Create(context.Background(), CreateInput{
		Description:    "Buraco na rua",
		IdempotencyKey: "session-key-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ref.Protocol != "ZL-2026-0007" {
		t.Errorf("Protocol = %q", ref.Protocol)
	}
	if gotKey != "session-key-1" {
		t.Errorf("Idempotency-Key = %q", gotKey)
	}
	if gotAuth != "Bearer api-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.Description != "Buraco na rua" {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestCreateBackendErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "")
	if _, err := client.Create(context.Background(), CreateInput{}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestGetByProtocol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/demands/protocol/ZL-2026-0007":
			_ = json.NewEncoder(w).Encode(Status{Protocol: "ZL-2026-0007", Status: "aberto"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "")
	status, err := client.GetByProtocol(context.Background(), "ZL-2026-0007")
	if err != nil {
		t.Fatalf("GetByProtocol: %v", err)
	}
	if status.Status != "aberto" {
		t.Errorf("Status = %q", status.Status)
	}

	if _, err := client.GetByProtocol(context.Background(), "ZL-0000-0000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStageAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/attachments" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "image/jpeg" {
			t.Errorf("content type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "jpeg-bytes" {
			t.Errorf("body = %q", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "att-1", "url": "https://cdn.example.com/att-1"}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "")
	ref, err := client.StageAttachment(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("StageAttachment: %v", err)
	}
	if ref.ID != "att-1" || ref.URL != "https://cdn.example.com/att-1" {
		t.Errorf("ref = %+v", ref)
	}
	if ref.Mime != "image/jpeg" {
		t.Errorf("Mime = %q, want request mime backfilled", ref.Mime)
	}
}
