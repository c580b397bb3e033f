// types.go
package namecache

import (
	"encoding/json"
	"fmt"
)

type State int

const (
	Pending State = iota
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Entry is the resolution state of one identifier
type Entry struct {
	State   State  `json:"state"`
	Name    string `json:"name,omitempty"`    // Set when Resolved
	Message string `json:"message,omitempty"` // User-safe text, set when Failed
}

func PendingEntry() Entry {
	return Entry{State: Pending}
}

func ResolvedEntry(name string) Entry {
	return Entry{State: Resolved, Name: name}
}

func FailedEntry(message string) Entry {
	return Entry{State: Failed, Message: message}
}

func (e Entry) String() string {
	switch e.State {
	case Resolved:
		return fmt.Sprintf("Resolved(%s)", e.Name)
	case Failed:
		return fmt.Sprintf("Failed(%s)", e.Message)
	default:
		return e.State.String()
	}
}

// Listener is notified after an entry changed
type Listener func(id string, entry Entry)
