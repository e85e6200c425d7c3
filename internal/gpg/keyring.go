package gpg

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// selectKey picks a secret key from gpg --with-colons listing output.
//
// The listing interleaves sec, fpr and uid records per key. The key whose
// fingerprint ends with the last 8 hex digits of keyIDHint
// (case-insensitive) wins; without a hint the first sec record wins. The
// uid is the first one containing uidHint, or the first uid of the
// selected key when no uidHint is given. A hint that matches nothing is an
// error.
func selectKey(listing, keyIDHint, uidHint string) (fingerprint, uid string, err error) {
	type key struct {
		fpr  string
		uids []string
	}
	var keys []*key
	var cur *key
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Split(line, ":")
		switch fields[0] {
		case "sec":
			cur = &key{}
			keys = append(keys, cur)
		case "fpr":
			if cur != nil && cur.fpr == "" && len(fields) > 9 {
				cur.fpr = strings.ToUpper(fields[9])
			}
		case "uid":
			if cur != nil && len(fields) > 9 {
				cur.uids = append(cur.uids, fields[9])
			}
		}
	}
	if len(keys) == 0 {
		return "", "", fmt.Errorf("no secret key in keyring")
	}

	selected := keys[0]
	if keyIDHint != "" {
		hint := strings.ToUpper(keyIDHint)
		selected = nil
		for _, k := range keys {
			if strings.HasSuffix(k.fpr, lastN(hint, 8)) {
				selected = k
				break
			}
		}
		if selected == nil {
			return "", "", fmt.Errorf("no secret key matching id %q", keyIDHint)
		}
	}
	if len(selected.uids) == 0 {
		return "", "", fmt.Errorf("key %s has no uid", selected.fpr)
	}

	uid = selected.uids[0]
	if uidHint != "" {
		found := false
		for _, u := range selected.uids {
			if strings.Contains(u, uidHint) {
				uid = u
				found = true
				break
			}
		}
		if !found {
			return "", "", fmt.Errorf("key %s has no uid matching %q", selected.fpr, uidHint)
		}
	}
	return selected.fpr, uid, nil
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// verifyArmoredKey parses an armored public key export and checks that it
// carries the expected fingerprint.
func verifyArmoredKey(armored []byte, fingerprint string) error {
	ring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armored))
	if err != nil {
		return fmt.Errorf("parsing exported key: %w", err)
	}
	want := strings.ToUpper(fingerprint)
	for _, entity := range ring {
		got := strings.ToUpper(fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint))
		if got == want {
			return nil
		}
	}
	return fmt.Errorf("exported keyring does not contain %s", fingerprint)
}
