package gitlib

import (
	"context"
	"errors"
	"fmt"
	"os"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrNoCredentials is returned when the remote asks for a credential type
// bahn cannot provide.
var ErrNoCredentials = errors.New("no usable credentials for remote")

// TokenEnv names the environment variable holding an HTTPS push token.
const TokenEnv = "BAHN_GIT_TOKEN"

// PushOptions configures Push.
type PushOptions struct {
	Remote string
	Branch string
	Force  bool
}

// Push pushes a local branch to the same name on the remote. An empty branch
// means the current one.
func (r *Repository) Push(ctx context.Context, opts PushOptions) error {
	branch := opts.Branch
	if branch == "" {
		current, err := r.CurrentBranch(ctx)
		if err != nil {
			return err
		}

		branch = current
	}

	remote, err := r.repo.Remotes.Lookup(opts.Remote)
	if err != nil {
		return fmt.Errorf("lookup remote %s: %w", opts.Remote, err)
	}
	defer remote.Free()

	refspec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)
	if opts.Force {
		refspec = "+" + refspec
	}

	err = remote.Push([]string{refspec}, &git2go.PushOptions{
		RemoteCallbacks: git2go.RemoteCallbacks{CredentialsCallback: credentials},
	})
	if err != nil {
		return fmt.Errorf("push %s to %s: %w", branch, opts.Remote, err)
	}

	return nil
}

func credentials(_, usernameFromURL string, allowed git2go.CredentialType) (*git2go.Credential, error) {
	username := usernameFromURL
	if username == "" {
		username = "git"
	}

	switch {
	case allowed&git2go.CredentialTypeSSHKey != 0:
		return git2go.NewCredentialSSHKeyFromAgent(username)
	case allowed&git2go.CredentialTypeUserpassPlaintext != 0 && os.Getenv(TokenEnv) != "":
		return git2go.NewCredentialUserpassPlaintext(username, os.Getenv(TokenEnv))
	case allowed&git2go.CredentialTypeDefault != 0:
		return git2go.NewCredentialDefault()
	default:
		return nil, ErrNoCredentials
	}
}
