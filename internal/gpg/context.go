package gpg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/jbigot/pkg-builder/internal/models"
	"github.com/jbigot/pkg-builder/internal/run"
)

// Context is an isolated signing environment scoped to one invocation: a
// private gpg home seeded with the configured key, plus a wrapper script
// that callees such as debsign and rpmsign invoke in place of plain gpg.
type Context struct {
	Home        string
	KeyID       string // full fingerprint, uppercase
	UID         string
	Passphrase  string
	WrapperPath string

	runner *run.Runner
}

// NewContext creates the private homedir, imports the key file, selects the
// signing key and uid, and writes the wrapper script.
func NewContext(runner *run.Runner, keyFile, keyIDHint, uidHint, passphrase string) (*Context, error) {
	home, err := os.MkdirTemp("", "GNUPGHOME.")
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(home, 0o700); err != nil {
		os.RemoveAll(home)
		return nil, err
	}

	c := &Context{Home: home, Passphrase: passphrase, runner: runner}
	if err := c.setup(keyFile, keyIDHint, uidHint); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Context) setup(keyFile, keyIDHint, uidHint string) error {
	err := c.runner.Run(run.Cmd{Argv: []string{
		"gpg", "--batch", "--pinentry-mode", "loopback",
		"--homedir", c.Home, "--passphrase", c.Passphrase,
		"--import", keyFile,
	}})
	if err != nil {
		return err
	}

	listing, err := c.runner.Output(run.Cmd{Argv: []string{
		"gpg", "--batch", "--homedir", c.Home,
		"--list-secret-keys", "--with-colons",
	}})
	if err != nil {
		return err
	}
	c.KeyID, c.UID, err = selectKey(listing, keyIDHint, uidHint)
	if err != nil {
		return &models.ConfigError{Detail: "selecting signing key from " + keyFile, Err: err}
	}
	logrus.Debugf("signing key %s (%s)", c.KeyID, c.UID)

	c.WrapperPath = filepath.Join(c.Home, "gpg-wrapper.sh")
	wrapper := fmt.Sprintf("#!/bin/sh\nexec gpg --batch --pinentry-mode loopback --homedir %s --passphrase %s \"$@\"\n",
		c.Home, c.Passphrase)
	return os.WriteFile(c.WrapperPath, []byte(wrapper), 0o700)
}

// ShortKeyID returns the last 8 hex digits of the fingerprint.
func (c *Context) ShortKeyID() string {
	if len(c.KeyID) <= 8 {
		return c.KeyID
	}
	return c.KeyID[len(c.KeyID)-8:]
}

// KeyringPath returns the public keyring inside the private homedir.
func (c *Context) KeyringPath() string {
	return filepath.Join(c.Home, "pubring.kbx")
}

// ExportArmoredPublicKey exports the selected key armored and verifies that
// the export round-trips to the same fingerprint.
func (c *Context) ExportArmoredPublicKey() ([]byte, error) {
	out, err := c.runner.Output(run.Cmd{Argv: []string{
		"gpg", "--batch", "--homedir", c.Home,
		"--export", "--armor", c.KeyID,
	}})
	if err != nil {
		return nil, err
	}
	if err := verifyArmoredKey([]byte(out), c.KeyID); err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Close removes the private homedir. The CLI calls it once the distribution
// config that created the context is done.
func (c *Context) Close() {
	if c.Home != "" {
		os.RemoveAll(c.Home)
	}
}

// Splice describes how a context value is wrapped when spliced into an argv
// vector: callees vary between -kVALUE, --key VALUE, and VALUE + extra args.
type Splice struct {
	Prefix     string
	PrefixArgs []string
	Suffix     string
	SuffixArgs []string
}

// Apply returns the argv fragment for value under the splice shape.
func (s Splice) Apply(value string) []string {
	out := append([]string{}, s.PrefixArgs...)
	out = append(out, s.Prefix+value+s.Suffix)
	return append(out, s.SuffixArgs...)
}

// KeyIDArgs splices the full fingerprint.
func (c *Context) KeyIDArgs(s Splice) []string { return s.Apply(c.KeyID) }

// ShortKeyIDArgs splices the 8-digit key id.
func (c *Context) ShortKeyIDArgs(s Splice) []string { return s.Apply(c.ShortKeyID()) }

// UIDArgs splices the key uid.
func (c *Context) UIDArgs(s Splice) []string { return s.Apply(c.UID) }

// PassphraseArgs splices the passphrase.
func (c *Context) PassphraseArgs(s Splice) []string { return s.Apply(c.Passphrase) }
