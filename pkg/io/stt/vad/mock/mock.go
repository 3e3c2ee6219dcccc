// Package mock provides a scripted vad.Classifier for tests.
//
// Verdicts are returned in order, one per IsSpeech call; once exhausted the
// last verdict repeats. Errs, when set for an index, is returned instead.
package mock

import (
	"sync"

	"github.com/xpanvictor/aria/pkg/io/stt/vad"
)

// Classifier is a mock implementation of vad.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Verdicts scripts the result of each call.
	Verdicts []bool

	// Func, if set, decides each frame and takes precedence over Verdicts.
	Func func(frame []byte) bool

	// Errs maps a call index to the error returned for that call.
	Errs map[int]error

	// Calls counts IsSpeech invocations.
	Calls int

	// Closed reports whether Close was called.
	Closed bool
}

// IsSpeech implements vad.Classifier.
func (c *Classifier) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.Calls
	c.Calls++
	if err, ok := c.Errs[i]; ok {
		return false, err
	}
	if c.Func != nil {
		return c.Func(frame), nil
	}
	if len(c.Verdicts) == 0 {
		return false, nil
	}
	if i >= len(c.Verdicts) {
		return c.Verdicts[len(c.Verdicts)-1], nil
	}
	return c.Verdicts[i], nil
}

// Close implements vad.Classifier.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// Ensure Classifier implements vad.Classifier at compile time.
var _ vad.Classifier = (*Classifier)(nil)
