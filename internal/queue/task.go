package queue

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/parivyaya/constants"
)

// Kind is the decoded task_type. Anything the worker does not recognize is KindUnsupported.
type Kind int

const (
	KindUnsupported Kind = iota
	KindExtractRecords
)

func (k Kind) String() string {
	switch k {
	case KindExtractRecords:
		return constants.TaskTypeExtractRecords
	default:
		return "unsupported"
	}
}

// KindOf maps a wire task_type onto the closed Kind set.
func KindOf(taskType string) Kind {
	if taskType == constants.TaskTypeExtractRecords {
		return KindExtractRecords
	}
	return KindUnsupported
}

// Task is the unit of work traveling from the submitter to the workers.
// ID always equals the id of the job it drives.
type Task struct {
	ID            string
	Type          string // raw task_type as received
	Kind          Kind
	SourceName    string
	PayloadBase64 string
}

type wireTask struct {
	TaskID        string `json:"task_id"`
	TaskType      string `json:"task_type"`
	SourceName    string `json:"source_name"`
	PayloadBase64 string `json:"payload_base64,omitempty"`
}

var ErrMalformedTask = errors.New("queue: malformed task")

// taskEnvelopeBytes is reserved for everything in an encoded task except the
// payload. Source names are capped well below it.
const taskEnvelopeBytes = 4 << 10

// MaxDocumentFor returns the largest document whose encoded task fits in
// payloadLimit bytes. A non-positive limit means no limit and returns 0.
func MaxDocumentFor(payloadLimit int) int {
	if payloadLimit <= 0 {
		return 0
	}
	avail := payloadLimit - taskEnvelopeBytes
	if avail < 4 {
		return 1
	}
	return avail / 4 * 3
}

// NewExtractTask builds an extract_records task for a job with the document inlined.
func NewExtractTask(jobID, sourceName string, document []byte) Task {
	return Task{
		ID:            jobID,
		Type:          constants.TaskTypeExtractRecords,
		Kind:          KindExtractRecords,
		SourceName:    sourceName,
		PayloadBase64: base64.StdEncoding.EncodeToString(document),
	}
}

// HasPayload reports whether the task carries a document.
func (t Task) HasPayload() bool { return t.PayloadBase64 != "" }

// Document decodes the inlined payload.
func (t Task) Document() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(t.PayloadBase64)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return b, nil
}

func EncodeTask(t Task) ([]byte, error) {
	typ := t.Type
	if typ == "" && t.Kind == KindExtractRecords {
		typ = constants.TaskTypeExtractRecords
	}
	return json.Marshal(wireTask{
		TaskID:        t.ID,
		TaskType:      typ,
		SourceName:    t.SourceName,
		PayloadBase64: t.PayloadBase64,
	})
}

// DecodeTask parses a wire message. An unknown task_type is not an error; it
// decodes to KindUnsupported so the consumer can drop it in one place.
func DecodeTask(data []byte) (Task, error) {
	var w wireTask
	if err := json.Unmarshal(data, &w); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	return Task{
		ID:            w.TaskID,
		Type:          w.TaskType,
		Kind:          KindOf(w.TaskType),
		SourceName:    w.SourceName,
		PayloadBase64: w.PayloadBase64,
	}, nil
}
