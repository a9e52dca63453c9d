package voting

import "fmt"

// Kind distinguishes the record types a vote can reference.
type Kind uint8

const (
	KindPost Kind = iota + 1
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindPost:
		return "post"
	case KindComment:
		return "comment"
	default:
		return "unknown"
	}
}

// Target identifies a post or a comment. The zero Target is invalid; build
// one with PostTarget, CommentTarget, NewTarget or ParseTarget.
type Target struct {
	kind Kind
	id   int
}

func PostTarget(id int) Target    { return Target{kind: KindPost, id: id} }
func CommentTarget(id int) Target { return Target{kind: KindComment, id: id} }

// NewTarget builds a target of the given kind. It panics on an unknown kind.
func NewTarget(kind Kind, id int) Target {
	switch kind {
	case KindPost, KindComment:
		return Target{kind: kind, id: id}
	default:
		panic(fmt.Sprintf("voting: unknown target kind %d", kind))
	}
}

// ParseTarget maps a stored target_type column back to a Target.
func ParseTarget(kind string, id int) (Target, error) {
	switch kind {
	case "post":
		return PostTarget(id), nil
	case "comment":
		return CommentTarget(id), nil
	default:
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownTarget, kind)
	}
}

func (t Target) Kind() Kind   { return t.kind }
func (t Target) ID() int      { return t.id }
func (t Target) IsZero() bool { return t.kind == 0 }

func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.kind, t.id)
}
