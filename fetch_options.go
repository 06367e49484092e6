package simplegit

import (
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// AutotagOption controls which tags a fetch downloads.
type AutotagOption int

const (
	// AutotagUnspecified uses the remote's configuration, which defaults to
	// AutotagAuto.
	AutotagUnspecified AutotagOption = iota
	// AutotagAuto downloads tags pointing at fetched objects.
	AutotagAuto
	// AutotagNone downloads no tags.
	AutotagNone
	// AutotagAll downloads every tag.
	AutotagAll
)

func (a AutotagOption) tagMode() gogit.TagMode {
	switch a {
	case AutotagAuto:
		return gogit.TagFollowing
	case AutotagNone:
		return gogit.NoTags
	case AutotagAll:
		return gogit.AllTags
	default:
		return gogit.InvalidTagMode
	}
}

// ProxyOptions configures an http proxy for network operations.
type ProxyOptions struct {
	spent
	url      string
	username string
	password string
}

// NewProxyOptions returns options that use the environment's proxy
// settings.
func NewProxyOptions() *ProxyOptions {
	return &ProxyOptions{}
}

// Auto discovers the proxy from HTTP_PROXY and related variables.
func (p *ProxyOptions) Auto() *ProxyOptions {
	p.url = ""
	return p
}

// URL sets an explicit proxy.
func (p *ProxyOptions) URL(url string) *ProxyOptions {
	p.url = url
	return p
}

// Credentials authenticates against the proxy.
func (p *ProxyOptions) Credentials(username, password string) *ProxyOptions {
	p.username, p.password = username, password
	return p
}

func (p *ProxyOptions) take() (transport.ProxyOptions, error) {
	if p == nil {
		return transport.ProxyOptions{}, nil
	}
	if err := p.consume(); err != nil {
		return transport.ProxyOptions{}, err
	}
	return transport.ProxyOptions{URL: p.url, Username: p.username, Password: p.password}, nil
}

// FetchOptions configure Remote.Fetch and cloning. Options can be used for
// one operation only.
type FetchOptions struct {
	spent
	callbacks       *RemoteCallbacks
	proxy           transport.ProxyOptions
	depth           int
	prune           bool
	tags            AutotagOption
	insecureSkipTLS bool
}

// NewFetchOptions returns default fetch options.
func NewFetchOptions() *FetchOptions {
	return &FetchOptions{}
}

// RemoteCallbacks attaches callbacks, consuming them.
func (o *FetchOptions) RemoteCallbacks(cbs *RemoteCallbacks) error {
	taken, err := cbs.take()
	if err != nil {
		return err
	}
	o.callbacks = taken
	return nil
}

// ProxyOptions attaches proxy settings, consuming them.
func (o *FetchOptions) ProxyOptions(proxy *ProxyOptions) error {
	taken, err := proxy.take()
	if err != nil {
		return err
	}
	o.proxy = taken
	return nil
}

// Depth limits the history fetched per tip. Zero fetches everything.
func (o *FetchOptions) Depth(depth int) *FetchOptions {
	o.depth = depth
	return o
}

// Prune deletes remote-tracking references that no longer exist remotely.
func (o *FetchOptions) Prune(prune bool) *FetchOptions {
	o.prune = prune
	return o
}

// DownloadTags selects which tags to fetch.
func (o *FetchOptions) DownloadTags(tags AutotagOption) *FetchOptions {
	o.tags = tags
	return o
}

// InsecureSkipTLS disables certificate verification for https remotes.
func (o *FetchOptions) InsecureSkipTLS(skip bool) *FetchOptions {
	o.insecureSkipTLS = skip
	return o
}

// take consumes o, treating nil as defaults.
func (o *FetchOptions) take() (*FetchOptions, error) {
	if o == nil {
		return &FetchOptions{callbacks: &RemoteCallbacks{}}, nil
	}
	if err := o.consume(); err != nil {
		return nil, err
	}
	if o.callbacks == nil {
		o.callbacks = &RemoteCallbacks{}
	}
	return o, nil
}

// PushOptions configure Remote.Push. Options can be used for one operation
// only.
type PushOptions struct {
	spent
	callbacks *RemoteCallbacks
	proxy     transport.ProxyOptions
	force     bool
}

// NewPushOptions returns default push options.
func NewPushOptions() *PushOptions {
	return &PushOptions{}
}

// RemoteCallbacks attaches callbacks, consuming them.
func (o *PushOptions) RemoteCallbacks(cbs *RemoteCallbacks) error {
	taken, err := cbs.take()
	if err != nil {
		return err
	}
	o.callbacks = taken
	return nil
}

// ProxyOptions attaches proxy settings, consuming them.
func (o *PushOptions) ProxyOptions(proxy *ProxyOptions) error {
	taken, err := proxy.take()
	if err != nil {
		return err
	}
	o.proxy = taken
	return nil
}

// Force allows non fast-forward updates.
func (o *PushOptions) Force(force bool) *PushOptions {
	o.force = force
	return o
}

func (o *PushOptions) take() (*PushOptions, error) {
	if o == nil {
		return &PushOptions{callbacks: &RemoteCallbacks{}}, nil
	}
	if err := o.consume(); err != nil {
		return nil, err
	}
	if o.callbacks == nil {
		o.callbacks = &RemoteCallbacks{}
	}
	return o, nil
}
