package orphan

import (
	"fmt"
	"strings"
)

type ActionType string

const (
	ActionClaim  ActionType = "claim"
	ActionIgnore ActionType = "ignore"
)

// ParseActionType accepts claim or ignore, case-insensitively.
func ParseActionType(raw string) (ActionType, error) {
	switch ActionType(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionClaim:
		return ActionClaim, nil
	case ActionIgnore:
		return ActionIgnore, nil
	case "":
		return "", ErrActionTypeRequired
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidActionType, raw)
	}
}

// ChangeType values order lexically so that, descending, deleted outranks
// changed which outranks added. Latest-state queries rely on that.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeChanged ChangeType = "changed"
	ChangeDeleted ChangeType = "deleted"
)

type ReingestStatus string

const (
	ReingestPending   ReingestStatus = "pending"
	ReingestSucceeded ReingestStatus = "succeeded"
	ReingestFailed    ReingestStatus = "failed"
)
