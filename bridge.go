package simplegit

import (
	"github.com/go-git/go-git/v5/plumbing"
)

// ParentKind names what a derived value was borrowed from. Every derived
// wrapper keeps its parent alive until it is closed, whatever the kind.
type ParentKind int

const (
	// ParentOwned values were copied out and keep no parent alive.
	ParentOwned ParentKind = iota
	ParentRepository
	ParentReference
	ParentCommit
	ParentTree
	ParentObject
)

func (k ParentKind) String() string {
	switch k {
	case ParentRepository:
		return "repository"
	case ParentReference:
		return "reference"
	case ParentCommit:
		return "commit"
	case ParentTree:
		return "tree"
	case ParentObject:
		return "object"
	default:
		return "owned"
	}
}

// ObjectKind is the type of a git object.
type ObjectKind int

const (
	ObjectAny ObjectKind = iota
	ObjectCommit
	ObjectTree
	ObjectBlob
	ObjectTag
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectCommit:
		return "commit"
	case ObjectTree:
		return "tree"
	case ObjectBlob:
		return "blob"
	case ObjectTag:
		return "tag"
	default:
		return "any"
	}
}

func objectKindOf(t plumbing.ObjectType) ObjectKind {
	switch t {
	case plumbing.CommitObject:
		return ObjectCommit
	case plumbing.TreeObject:
		return ObjectTree
	case plumbing.BlobObject:
		return ObjectBlob
	case plumbing.TagObject:
		return ObjectTag
	default:
		return ObjectAny
	}
}

func (k ObjectKind) objectType() plumbing.ObjectType {
	switch k {
	case ObjectCommit:
		return plumbing.CommitObject
	case ObjectTree:
		return plumbing.TreeObject
	case ObjectBlob:
		return plumbing.BlobObject
	case ObjectTag:
		return plumbing.TagObject
	default:
		return plumbing.AnyObject
	}
}
