package repo

import (
	"github.com/sirupsen/logrus"

	"github.com/gritvcs/grit/pkg/object"
)

// Repo represents an opened grit repository.
type Repo struct {
	RootDir string       // working directory root (== GritDir when bare)
	GritDir string       // .grit/ directory, or the repository itself when bare
	Store   object.Store // content-addressed object store
	Config  *Config

	log *logrus.Logger
}

// Bare reports whether the repository has no working tree.
func (r *Repo) Bare() bool {
	return r.Config != nil && r.Config.Core.Bare
}

// SetLogger replaces the repository logger. A nil logger resets the default.
func (r *Repo) SetLogger(log *logrus.Logger) {
	if log == nil {
		log = defaultLogger()
	}
	r.log = log
}

func defaultLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}
