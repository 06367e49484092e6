package simplegit

import (
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jmgilman/go/simplegit/internal/handle"
)

// Signature identifies who made a commit or tag and when.
type Signature struct {
	ref    *handle.Ref[object.Signature]
	parent ParentKind
}

func newSignature(ref *handle.Ref[object.Signature], parent ParentKind) *Signature {
	s := &Signature{ref: ref, parent: parent}
	handle.Track(s, ref)
	return s
}

// NewSignature creates a signature at when. Names and emails containing
// angle brackets are rejected.
func NewSignature(name, email string, when time.Time) (*Signature, error) {
	return newOwnedSignature(name, email, when)
}

// SignatureNow creates a signature with the current time.
func SignatureNow(name, email string) (*Signature, error) {
	return newOwnedSignature(name, email, time.Now())
}

func newOwnedSignature(name, email string, when time.Time) (*Signature, error) {
	if strings.ContainsAny(name, "<>") || strings.ContainsAny(email, "<>") {
		return nil, invalidInput("neither name nor email may contain angle brackets")
	}
	if name == "" {
		return nil, invalidInput("signature name is empty")
	}

	sig := object.Signature{Name: name, Email: email, When: when}
	return newSignature(handle.Own[object.Signature](handle.NewRoot(sig, nil)), ParentOwned), nil
}

func (s *Signature) get() (object.Signature, error) {
	sig, err := s.ref.Get()
	if err != nil {
		return object.Signature{}, wrapError(err, "signature is not available")
	}
	return sig, nil
}

// Close drops the hold on the signature.
func (s *Signature) Close() error {
	return s.ref.Close()
}

// ParentKind reports ParentCommit or ParentObject for signatures read from
// objects and ParentOwned for constructed ones.
func (s *Signature) ParentKind() ParentKind {
	return s.parent
}

// Name returns the name.
func (s *Signature) Name() (string, error) {
	sig, err := s.get()
	return sig.Name, err
}

// Email returns the email address.
func (s *Signature) Email() (string, error) {
	sig, err := s.get()
	return sig.Email, err
}

// When returns the time in seconds since the epoch.
func (s *Signature) When() (int64, error) {
	sig, err := s.get()
	return sig.When.Unix(), err
}

// Time returns the time including its zone offset.
func (s *Signature) Time() (time.Time, error) {
	sig, err := s.get()
	return sig.When, err
}
