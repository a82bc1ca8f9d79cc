package store

import "log"

// badgerLogger adapts badger's four-level Logger interface onto the
// standard logger, keeping badger's (fairly chatty) internals at
// WARNING and above.
type badgerLogger struct{}

func newBadgerLogger() *badgerLogger { return &badgerLogger{} }

func (l *badgerLogger) Errorf(f string, args ...interface{})   { log.Printf("badger error: "+f, args...) }
func (l *badgerLogger) Warningf(f string, args ...interface{}) { log.Printf("badger warn: "+f, args...) }
func (l *badgerLogger) Infof(f string, args ...interface{})    {}
func (l *badgerLogger) Debugf(f string, args ...interface{})   {}
