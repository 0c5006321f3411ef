package sync

type ChangeOp uint8

const (
	ChangeCreated ChangeOp = iota
	ChangeModified
	ChangeRemoved
)

var changeOpNames = []string{
	"Created",
	"Modified",
	"Removed",
}

func (op ChangeOp) String() string {
	if int(op) < len(changeOpNames) {
		return changeOpNames[op]
	}
	return "Unknown"
}

// ChangeEvent is a debounced, deduplicated change notification for one path.
// Renames surface as a Removed+Created pair and are recombined during
// reconciliation.
type ChangeEvent struct {
	Op   ChangeOp
	Path string
}
