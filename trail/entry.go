package trail

import (
	"bytes"
	"encoding/json"
	"time"
)

// Operation is the stored tag of a mutation kind.
type Operation string

const (
	OperationCreate Operation = "Create"
	OperationUpdate Operation = "Update"
	OperationDelete Operation = "Delete"
)

// State is the tracked state of an entity at commit time.
type State int

const (
	StateUnchanged State = iota
	StateAdded
	StateModified
	StateDeleted
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateAdded:
		return "Added"
	case StateModified:
		return "Modified"
	case StateDeleted:
		return "Deleted"
	case StateDetached:
		return "Detached"
	default:
		return "Unchanged"
	}
}

// Document is a serialized payload. A nil Document means the value is
// absent and is stored as NULL.
type Document []byte

// MarshalJSON embeds valid JSON documents as-is and quotes anything else.
func (d Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	if json.Valid(d) {
		return bytes.Clone(d), nil
	}
	return json.Marshal(string(d))
}

// UnmarshalJSON keeps the raw bytes; JSON null yields a nil Document.
func (d *Document) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = nil
		return nil
	}
	*d = bytes.Clone(b)
	return nil
}

// Entry is one immutable audit record.
type Entry struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	Table          string    `json:"tableName"`
	Operation      Operation `json:"operationType"`
	PrimaryKey     Document  `json:"primaryKey"`
	OldValues      Document  `json:"oldValues"`
	NewValues      Document  `json:"newValues"`
	ChangedColumns Document  `json:"changedColumns"`
	Timestamp      time.Time `json:"timestamp"`
}
