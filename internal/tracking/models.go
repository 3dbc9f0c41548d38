package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle of a tracked item.
type State string

const (
	StateAccepted   State = "accepted"
	StateReadyForAI State = "ready_for_ai"
	StateAIReturned State = "ai_returned"
	StateAIFailed   State = "ai_failed"
	StateOrganized  State = "organized"
)

// AllStates lists every state in pipeline order.
var AllStates = []State{
	StateAccepted,
	StateReadyForAI,
	StateAIReturned,
	StateAIFailed,
	StateOrganized,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(AllStates))
	for _, state := range AllStates {
		set[state] = struct{}{}
	}
	return set
}()

type stateTransition struct {
	from State
	to   State
}

// allowedTransitions is the authoritative transition table. Entry into
// accepted and removal are handled by Upsert and Remove.
var allowedTransitions = map[stateTransition]struct{}{
	{from: StateAccepted, to: StateReadyForAI}:   {},
	{from: StateReadyForAI, to: StateAIReturned}: {},
	{from: StateReadyForAI, to: StateAIFailed}:   {},
	{from: StateAIFailed, to: StateReadyForAI}:   {},
	{from: StateAIReturned, to: StateOrganized}:  {},
	{from: StateOrganized, to: StateOrganized}:   {},
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := stateSet[s]
	return ok
}

// ParseState converts a string into a State.
func ParseState(value string) (State, bool) {
	state := State(strings.ToLower(strings.TrimSpace(value)))
	if !state.Valid() {
		return "", false
	}
	return state, true
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to State) bool {
	_, ok := allowedTransitions[stateTransition{from: from, to: to}]
	return ok
}

// Item is a tracked input folder persisted in SQLite.
type Item struct {
	Identity        string
	RelativePath    string
	State           State
	Metadata        json.RawMessage
	DestinationPath string
	LastError       string
	Attempts        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasMetadata reports whether an enrichment payload has been stored.
func (i *Item) HasMetadata() bool {
	return i != nil && len(i.Metadata) > 0 && string(i.Metadata) != "null"
}

// ErrInvalidPath marks a relative path that cannot identify an item.
var ErrInvalidPath = errors.New("invalid relative path")

// NormalizeRelativePath returns the slash-separated clean form of a path
// relative to the input root. Absolute paths and paths escaping the root are
// rejected.
func NormalizeRelativePath(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	slashed := filepath.ToSlash(trimmed)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(trimmed) {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, value)
	}
	cleaned := path.Clean(slashed)
	if cleaned == "." {
		return "", fmt.Errorf("%w: %q names the input root", ErrInvalidPath, value)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q escapes the input root", ErrInvalidPath, value)
	}
	return cleaned, nil
}

var identityNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("shelver.item"))

// IdentityFor derives the stable identity for a relative path. Paths that
// normalize to the same form share an identity.
func IdentityFor(relativePath string) (string, error) {
	normalized, err := NormalizeRelativePath(relativePath)
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(identityNamespace, []byte(normalized)).String(), nil
}
