package log

import "github.com/sirupsen/logrus"

// BadgerAdapter bridges badger.Logger onto a logrus entry. Badger's info and
// debug chatter is demoted to Debug so pipeline runs stay readable.
type BadgerAdapter struct {
	entry *logrus.Entry
}

// NewBadgerAdapter creates a badger.Logger backed by the given entry.
func NewBadgerAdapter(entry *logrus.Entry) *BadgerAdapter {
	return &BadgerAdapter{entry: entry}
}

func (l *BadgerAdapter) Errorf(f string, v ...interface{})   { l.entry.Errorf(f, v...) }
func (l *BadgerAdapter) Warningf(f string, v ...interface{}) { l.entry.Warningf(f, v...) }
func (l *BadgerAdapter) Infof(f string, v ...interface{})    { l.entry.Debugf(f, v...) }
func (l *BadgerAdapter) Debugf(f string, v ...interface{})   { l.entry.Debugf(f, v...) }
