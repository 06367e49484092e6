package simplegit

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// spent marks a builder that may be handed to an operation only once.
type spent struct {
	used atomic.Bool
}

// consume claims the builder. The second claim fails with ErrAlreadyUsed.
func (s *spent) consume() error {
	if !s.used.CompareAndSwap(false, true) {
		return ErrAlreadyUsed
	}
	return nil
}

// Progress reports how far a fetch has come. Counters never decrease.
type Progress struct {
	TotalObjects    int
	IndexedObjects  int
	ReceivedObjects int
	LocalObjects    int
	TotalDeltas     int
	IndexedDeltas   int
	ReceivedBytes   int
}

// RemoteCallbacks hooks into network operations. A RemoteCallbacks value
// can be attached to one set of options only.
//
// Example:
//
//	cbs := simplegit.NewRemoteCallbacks().
//		TransferProgress(func(p simplegit.Progress) bool {
//			fmt.Printf("%d/%d objects\n", p.ReceivedObjects, p.TotalObjects)
//			return true
//		})
type RemoteCallbacks struct {
	spent
	transfer     func(Progress) bool
	pushTransfer func(current, total, bytes int) bool
	credentials  func(CredentialRequest) (*Cred, error)
}

// NewRemoteCallbacks returns an empty set of callbacks.
func NewRemoteCallbacks() *RemoteCallbacks {
	return &RemoteCallbacks{}
}

// TransferProgress is called as fetch progress arrives. Returning false
// cancels the fetch.
func (c *RemoteCallbacks) TransferProgress(fn func(Progress) bool) *RemoteCallbacks {
	c.transfer = fn
	return c
}

// PushTransferProgress is called as push progress arrives. Returning false
// cancels the push.
func (c *RemoteCallbacks) PushTransferProgress(fn func(current, total, bytes int) bool) *RemoteCallbacks {
	c.pushTransfer = fn
	return c
}

// Credentials is asked for credentials before contacting the remote. When
// unset, DefaultCredentials is used.
func (c *RemoteCallbacks) Credentials(fn func(CredentialRequest) (*Cred, error)) *RemoteCallbacks {
	c.credentials = fn
	return c
}

// take consumes c, treating nil as an empty set.
func (c *RemoteCallbacks) take() (*RemoteCallbacks, error) {
	if c == nil {
		return &RemoteCallbacks{}, nil
	}
	if err := c.consume(); err != nil {
		return nil, err
	}
	return c, nil
}

var (
	progressCount = regexp.MustCompile(`^([A-Za-z ]+):\s+(?:\d+% \((\d+)/(\d+)\)|(\d+))`)
	progressTotal = regexp.MustCompile(`Total (\d+) \(delta (\d+)\)`)
	progressBytes = regexp.MustCompile(`,\s+([\d.]+) (bytes|KiB|MiB|GiB)`)
)

// progressWriter parses the human readable sideband stream sent by the
// remote into counters.
type progressWriter struct {
	mu      sync.Mutex
	pending []byte
	state   Progress
	onFetch func(Progress) bool
	onPush  func(current, total, bytes int) bool
	cancel  context.CancelFunc
	logger  *slog.Logger
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexAny(w.pending, "\r\n")
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(w.pending[:i]))
		w.pending = w.pending[i+1:]
		if line != "" {
			w.line(line)
		}
	}
	return len(p), nil
}

func (w *progressWriter) line(line string) {
	line = strings.TrimPrefix(line, "remote: ")
	w.logger.Debug("transfer progress", "message", line)

	next := w.state
	var current, total int
	if m := progressTotal.FindStringSubmatch(line); m != nil {
		next.TotalObjects = max(next.TotalObjects, atoi(m[1]))
		next.TotalDeltas = max(next.TotalDeltas, atoi(m[2]))
	} else if m := progressCount.FindStringSubmatch(line); m != nil {
		phase := strings.ToLower(strings.TrimSpace(m[1]))
		current, total = atoi(m[2]), atoi(m[3])
		if m[4] != "" {
			current, total = atoi(m[4]), atoi(m[4])
		}

		switch phase {
		case "enumerating objects", "counting objects", "compressing objects":
			next.TotalObjects = max(next.TotalObjects, total)
		case "receiving objects", "writing objects":
			next.TotalObjects = max(next.TotalObjects, total)
			next.ReceivedObjects = max(next.ReceivedObjects, current)
		case "indexing objects":
			next.IndexedObjects = max(next.IndexedObjects, current)
		case "resolving deltas":
			next.TotalDeltas = max(next.TotalDeltas, total)
			next.IndexedDeltas = max(next.IndexedDeltas, current)
		case "checking objects", "unpacking objects":
			next.LocalObjects = max(next.LocalObjects, current)
		}
	} else {
		return
	}
	if m := progressBytes.FindStringSubmatch(line); m != nil {
		next.ReceivedBytes = max(next.ReceivedBytes, parseSize(m[1], m[2]))
	}
	w.state = next

	keep := true
	if w.onFetch != nil {
		keep = w.onFetch(next)
	}
	if w.onPush != nil && total > 0 {
		keep = w.onPush(current, total, next.ReceivedBytes) && keep
	}
	if !keep && w.cancel != nil {
		w.logger.Debug("transfer cancelled by callback")
		w.cancel()
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseSize(value, unit string) int {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	switch unit {
	case "KiB":
		f *= 1 << 10
	case "MiB":
		f *= 1 << 20
	case "GiB":
		f *= 1 << 30
	}
	return int(f)
}
