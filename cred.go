package simplegit

import (
	"path"

	"github.com/adrg/xdg"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// CredentialType is a bitmask of the credential kinds a transport accepts.
type CredentialType uint

const (
	CredTypeUserPassPlaintext CredentialType = 1 << iota
	CredTypeSSHKey
	CredTypeSSHCustom
	CredTypeDefault
	CredTypeSSHInteractive
	CredTypeUsername
	CredTypeSSHMemory
)

// Contains reports whether every bit of other is set in t.
func (t CredentialType) Contains(other CredentialType) bool {
	return t&other == other
}

// CredentialRequest describes the remote asking for credentials.
type CredentialRequest struct {
	// Allowed is the set of credential kinds the transport can use.
	Allowed CredentialType
	// URL is the remote URL being contacted.
	URL string
	// UsernameFromURL is the user embedded in URL, if any.
	UsernameFromURL string
}

// Cred is a credential handed to a transport. It can be used once.
type Cred struct {
	spent

	kind CredentialType
	auth transport.AuthMethod
	user string
}

// Kind returns the kind of credential.
func (c *Cred) Kind() CredentialType {
	return c.kind
}

// CredDefault lets the transport pick its defaults. For ssh this is the
// user's agent, for http no authentication.
func CredDefault() *Cred {
	return &Cred{kind: CredTypeDefault}
}

// CredSSHKeyFromAgent authenticates as user with keys from the running ssh
// agent.
func CredSSHKeyFromAgent(user string) (*Cred, error) {
	auth, err := gitssh.NewSSHAgentAuth(user)
	if err != nil {
		return nil, wrapError(err, "failed to connect to ssh agent")
	}
	return &Cred{kind: CredTypeSSHKey, auth: auth, user: user}, nil
}

// CredSSHKey reads a private key from privateKeyPath. The public key is
// derived from the private key, so publicKeyPath may be empty.
//
// Example:
//
//	cred, err := simplegit.CredSSHKey("git", "", "/home/me/.ssh/id_ed25519", "")
func CredSSHKey(user, publicKeyPath, privateKeyPath, passphrase string) (*Cred, error) {
	auth, err := gitssh.NewPublicKeysFromFile(user, privateKeyPath, passphrase)
	if err != nil {
		return nil, wrapErrorf(err, "failed to read ssh key %s", privateKeyPath)
	}
	return &Cred{kind: CredTypeSSHKey, auth: auth, user: user}, nil
}

// CredSSHKeyFromMemory parses a PEM encoded private key.
func CredSSHKeyFromMemory(user, publicKey, privateKey, passphrase string) (*Cred, error) {
	auth, err := gitssh.NewPublicKeys(user, []byte(privateKey), passphrase)
	if err != nil {
		return nil, wrapError(err, "failed to parse ssh key")
	}
	return &Cred{kind: CredTypeSSHMemory, auth: auth, user: user}, nil
}

// CredUserPassPlaintext is http basic authentication. Personal access tokens
// go in password.
func CredUserPassPlaintext(username, password string) *Cred {
	return &Cred{
		kind: CredTypeUserPassPlaintext,
		auth: &http.BasicAuth{Username: username, Password: password},
		user: username,
	}
}

// CredUsername supplies only a user name. Over ssh the agent provides the
// keys.
func CredUsername(username string) *Cred {
	return &Cred{kind: CredTypeUsername, user: username}
}

// method converts the credential into a go-git auth method for ep. A nil
// method means the transport's default.
func (c *Cred) method(ep *transport.Endpoint) (transport.AuthMethod, error) {
	if c == nil {
		return nil, nil
	}
	if err := c.consume(); err != nil {
		return nil, err
	}
	if c.kind != CredTypeUsername {
		return c.auth, nil
	}

	switch ep.Protocol {
	case "ssh":
		auth, err := gitssh.NewSSHAgentAuth(c.user)
		if err != nil {
			return nil, wrapError(err, "failed to connect to ssh agent")
		}
		return auth, nil
	case "http", "https":
		return &http.BasicAuth{Username: c.user}, nil
	default:
		return nil, nil
	}
}

// allowedFor returns the credential kinds a transport for ep accepts.
func allowedFor(ep *transport.Endpoint) CredentialType {
	switch ep.Protocol {
	case "ssh":
		return CredTypeSSHKey | CredTypeSSHCustom | CredTypeSSHMemory | CredTypeUsername | CredTypeDefault
	case "http", "https":
		return CredTypeUserPassPlaintext | CredTypeDefault
	default:
		return CredTypeDefault
	}
}

// DefaultCredentials is used when no credentials callback is set. Http
// remotes get the default credential; ssh remotes naming a user get that
// user's ~/.ssh/id_rsa.
func DefaultCredentials(req CredentialRequest) (*Cred, error) {
	ep, err := transport.NewEndpoint(req.URL)
	if err != nil {
		return CredDefault(), nil
	}

	switch {
	case ep.Protocol == "http" || ep.Protocol == "https":
		return CredDefault(), nil
	case req.UsernameFromURL != "":
		return CredSSHKey(req.UsernameFromURL, "", path.Join(xdg.Home, ".ssh", "id_rsa"), "")
	default:
		return CredDefault(), nil
	}
}

// authFor asks callback for credentials for url and converts the result.
func authFor(url string, callback func(CredentialRequest) (*Cred, error)) (transport.AuthMethod, error) {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return nil, invalidInput("invalid remote url %q: %v", url, err)
	}
	if ep.Protocol == localScheme || ep.Protocol == "file" {
		return nil, nil
	}
	if callback == nil {
		callback = DefaultCredentials
	}

	cred, err := callback(CredentialRequest{
		Allowed:         allowedFor(ep),
		URL:             url,
		UsernameFromURL: ep.User,
	})
	if err != nil {
		return nil, wrapErrorf(err, "failed to acquire credentials for %s", url)
	}
	return cred.method(ep)
}
