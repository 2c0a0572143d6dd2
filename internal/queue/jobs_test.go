package queue

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNewJobAndDecode(t *testing.T) {
	job, err := NewJob(KindPrecompute, PrecomputePayload{MaxDate: "2026-08-31"})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected a generated job id")
	}
	if job.Kind != KindPrecompute {
		t.Fatalf("kind = %q", job.Kind)
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := DecodeJob(data)
	if err != nil {
		t.Fatalf("DecodeJob: %v", err)
	}
	if !reflect.DeepEqual(decoded, job) {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, job)
	}

	var payload PrecomputePayload
	if err := json.Unmarshal(decoded.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.MaxDate != "2026-08-31" {
		t.Fatalf("max_date = %q", payload.MaxDate)
	}
}

func TestNewJobNilPayload(t *testing.T) {
	job, err := NewJob(KindEmbedRefresh, nil)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.Payload != nil {
		t.Fatalf("expected empty payload, got %s", job.Payload)
	}
}

func TestDecodeJobInvalid(t *testing.T) {
	if _, err := DecodeJob([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid body")
	}
}
