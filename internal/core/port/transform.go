package port

type TransformKind string

const (
	TransformServerTimestamp TransformKind = "serverTimestamp"
	TransformArrayUnion      TransformKind = "arrayUnion"
	TransformArrayRemove     TransformKind = "arrayRemove"
	TransformDelete          TransformKind = "delete"
)

// Transform is a write-time sentinel resolved by the store.
type Transform struct {
	Kind   TransformKind
	Values []any
}

var (
	ServerTimestamp = Transform{Kind: TransformServerTimestamp}
	DeleteField     = Transform{Kind: TransformDelete}
)

func ArrayUnion(values ...any) Transform {
	return Transform{Kind: TransformArrayUnion, Values: values}
}

func ArrayRemove(values ...any) Transform {
	return Transform{Kind: TransformArrayRemove, Values: values}
}
