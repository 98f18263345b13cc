package main

import (
	"fmt"
	"log"
	"sync"

	"futdrill.ai/internal/observerproto"
	"futdrill.ai/internal/playlist"
	"futdrill.ai/internal/transport/observer"
)

// frameLoop is the clock.FrameStepper the driver owns. It advances the
// session, feeds observers and keeps a copy of the status for HTTP readers.
type frameLoop struct {
	sess *playlist.Session
	pub  *observer.Publisher

	mu     sync.Mutex
	status playlist.Status
	frames uint64
}

func newFrameLoop(sess *playlist.Session, pub *observer.Publisher) *frameLoop {
	l := &frameLoop{sess: sess, pub: pub}
	l.status = sess.Status()
	return l
}

func (l *frameLoop) Frame(frameDt float64) {
	l.sess.Frame(frameDt)
	if l.pub != nil {
		l.pub.Publish()
	}
	st := l.sess.Status()
	l.mu.Lock()
	l.status = st
	l.frames++
	l.mu.Unlock()
}

// Status is safe to call from any goroutine.
func (l *frameLoop) Status() (playlist.Status, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status, l.frames
}

// applyCommand runs on the loop goroutine.
func applyCommand(sess *playlist.Session, cmd observerproto.CommandMsg, logger *log.Logger) error {
	var err error
	switch cmd.Command {
	case observerproto.CommandNext:
		err = sess.Next()
	case observerproto.CommandPrevious:
		err = sess.Previous()
	case observerproto.CommandRestart:
		err = sess.Restart()
	case observerproto.CommandStart:
		err = sess.StartScenario(cmd.Index)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Command)
	}
	if err != nil {
		logger.Printf("command %s: %v", cmd.Command, err)
	}
	return err
}
