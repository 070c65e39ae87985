package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixUser     = "user"
	PrefixProfile  = "prof"
	PrefixSnapshot = "snap"
	PrefixOp       = "op"
	PrefixWidget   = "widget"
	PrefixNest     = "nest"
	PrefixStream   = "stream"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewUserID() string     { return New(PrefixUser) }
func NewProfileID() string  { return New(PrefixProfile) }
func NewSnapshotID() string { return New(PrefixSnapshot) }
func NewOpID() string       { return New(PrefixOp) }
func NewWidgetID() string   { return New(PrefixWidget) }
func NewNestID() string     { return New(PrefixNest) }
func NewStreamID() string   { return New(PrefixStream) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
