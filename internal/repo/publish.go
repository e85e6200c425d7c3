package repo

import (
	"github.com/sirupsen/logrus"
)

// PublishFinal assembles the user-facing repository after the scheduler
// reports global completion: every finished node's artifacts, the archive
// keyring, and the rendered README and install snippets.
func (b *Builder) PublishFinal(dest string, sources []Source) error {
	if len(sources) == 0 {
		logrus.Warnf("nothing to publish into %s", dest)
		return nil
	}
	logrus.Infof("publishing %d build(s) into %s", len(sources), dest)
	return b.Build(dest, sources)
}
