package queue

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeTaskKinds(t *testing.T) {
	cases := []struct {
		name string
		in   string
		kind Kind
	}{
		{"extract", `{"task_id":"J1","task_type":"extract_records","source_name":"a.pdf","payload_base64":"JVBE"}`, KindExtractRecords},
		{"unknown type", `{"task_id":"J1","task_type":"noop","source_name":"a.pdf","payload_base64":"JVBE"}`, KindUnsupported},
		{"missing type", `{"task_id":"J1"}`, KindUnsupported},
		{"case sensitive", `{"task_id":"J1","task_type":"EXTRACT_RECORDS"}`, KindUnsupported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task, err := DecodeTask([]byte(tc.in))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if task.Kind != tc.kind {
				t.Fatalf("kind = %v, want %v", task.Kind, tc.kind)
			}
		})
	}
}

func TestDecodeTaskMalformed(t *testing.T) {
	_, err := DecodeTask([]byte("not json"))
	if !errors.Is(err, ErrMalformedTask) {
		t.Fatalf("err = %v, want ErrMalformedTask", err)
	}
}

func TestEncodeTaskWireNames(t *testing.T) {
	data, err := EncodeTask(NewExtractTask("J9", "stmt.pdf", []byte("%PDF-1.4")))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := string(data)
	for _, key := range []string{`"task_id":"J9"`, `"task_type":"extract_records"`, `"source_name":"stmt.pdf"`, `"payload_base64":"JVBERi0xLjQ="`} {
		if !strings.Contains(s, key) {
			t.Fatalf("encoded task %s missing %s", s, key)
		}
	}
}

func TestTaskDocument(t *testing.T) {
	task := NewExtractTask("J1", "a.pdf", []byte("%PDF-1.7 body"))
	if !task.HasPayload() {
		t.Fatal("expected payload")
	}
	doc, err := task.Document()
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if string(doc) != "%PDF-1.7 body" {
		t.Fatalf("document = %q", doc)
	}

	bad := Task{ID: "J1", PayloadBase64: "!!not base64!!"}
	if _, err := bad.Document(); err == nil {
		t.Fatal("expected decode error")
	}
	if (Task{ID: "J1"}).HasPayload() {
		t.Fatal("empty payload reported as present")
	}
}

func TestPartitionStable(t *testing.T) {
	for _, id := range []string{"J1", "J2", "a3f0c2d4-0000-4000-8000-000000000000"} {
		p := Partition(id, 8)
		if p < 0 || p >= 8 {
			t.Fatalf("partition %d out of range", p)
		}
		if Partition(id, 8) != p {
			t.Fatalf("partition for %s not stable", id)
		}
	}
	if Partition("anything", 1) != 0 || Partition("anything", 0) != 0 {
		t.Fatal("single partition topic must use partition 0")
	}
}

func TestPartitionOfSubject(t *testing.T) {
	if got := partitionOf("extract-tasks.3"); got != 3 {
		t.Fatalf("partitionOf = %d", got)
	}
	if got := partitionOf("extract-tasks"); got != 0 {
		t.Fatalf("partitionOf without suffix = %d", got)
	}
}
