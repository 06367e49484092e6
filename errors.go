package simplegit

import (
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	platformerrors "github.com/jmgilman/go/errors"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

var (
	// ErrClosed is returned when a handle is used after Close.
	ErrClosed = handle.ErrClosed

	// ErrAlreadyUsed is returned when a single-use builder is consumed twice.
	ErrAlreadyUsed = platformerrors.New(platformerrors.CodeConflict, "options have already been used")
)

// IsNotFound reports whether err carries the not-found code.
func IsNotFound(err error) bool {
	return platformerrors.GetCode(err) == platformerrors.CodeNotFound
}

// wrapError wraps an error with context, classifying it as a platform error type.
// If err is nil, returns nil.
func wrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, classifyError(err))
}

// wrapErrorf is wrapError with a formatted context.
func wrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return wrapError(err, fmt.Sprintf(format, args...))
}

// gitError reports a native failure without caller context.
func gitError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("git error: %w", classifyError(err))
}

// notFound turns an absent value into an explicit failure.
func notFound(format string, args ...any) error {
	return platformerrors.Newf(platformerrors.CodeNotFound, format, args...)
}

func invalidInput(format string, args ...any) error {
	return platformerrors.Newf(platformerrors.CodeInvalidInput, format, args...)
}

// classifyError maps go-git errors to platform error types. The original
// error stays in the chain so errors.Is keeps matching go-git sentinels.
// Unknown errors pass through unchanged.
//
//nolint:gocyclo,cyclop // each case is a simple mapping
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var platformErr platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		return err
	}

	switch {
	case errors.Is(err, handle.ErrClosed):
		return platformerrors.Wrap(err, platformerrors.CodeConflict, "handle is closed")

	// Not found
	case errors.Is(err, gogit.ErrRepositoryNotExists):
		return platformerrors.Wrap(err, platformerrors.CodeNotFound, "repository does not exist")
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return platformerrors.Wrap(err, platformerrors.CodeNotFound, "repository not found")
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return platformerrors.Wrap(err, platformerrors.CodeNotFound, "reference not found")
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return platformerrors.Wrap(err, platformerrors.CodeNotFound, "object not found")
	case errors.Is(err, object.ErrFileNotFound), errors.Is(err, object.ErrEntryNotFound), errors.Is(err, object.ErrDirectoryNotFound):
		return platformerrors.Wrap(err, platformerrors.CodeNotFound, "path not found in tree")
	case errors.Is(err, object.ErrParentNotFound):
		return platformerrors.Wrap(err, platformerrors.CodeNotFound, "parent commit not found")
	case errors.Is(err, gogit.ErrRemoteNotFound):
		return platformerrors.Wrap(err, platformerrors.CodeNotFound, "remote not found")
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return platformerrors.Wrap(err, platformerrors.CodeNotFound, "remote repository is empty")

	// Already exists
	case errors.Is(err, gogit.ErrRepositoryAlreadyExists):
		return platformerrors.Wrap(err, platformerrors.CodeAlreadyExists, "repository already exists")
	case errors.Is(err, gogit.ErrRemoteExists):
		return platformerrors.Wrap(err, platformerrors.CodeAlreadyExists, "remote already exists")

	// Authentication
	case errors.Is(err, transport.ErrAuthenticationRequired):
		return platformerrors.Wrap(err, platformerrors.CodeUnauthorized, "authentication required")
	case errors.Is(err, transport.ErrAuthorizationFailed):
		return platformerrors.Wrap(err, platformerrors.CodeUnauthorized, "authorization failed")

	// Invalid input
	case errors.Is(err, gogit.ErrMissingURL):
		return platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "URL is required")
	case errors.Is(err, gogit.ErrInvalidReference):
		return platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "invalid reference")
	case errors.Is(err, plumbing.ErrInvalidType):
		return platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "invalid object type")
	case errors.Is(err, object.ErrUnsupportedObject):
		return platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "unsupported object type")

	// Conflicts
	case errors.Is(err, gogit.ErrWorktreeNotClean):
		return platformerrors.Wrap(err, platformerrors.CodeConflict, "worktree is not clean")
	case errors.Is(err, gogit.ErrIsBareRepository):
		return platformerrors.Wrap(err, platformerrors.CodeConflict, "repository is bare")
	}

	return err
}
