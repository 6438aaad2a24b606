package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_LevelFallback(t *testing.T) {
	for _, level := range []string{"debug", "WARN", "", "verbose"} {
		l := New("test", level)
		assert.NotNil(t, l, level)
		l.With("event", EventComponentStarted).Debugf("level %s", level)
	}
}

func TestNop(t *testing.T) {
	l := NewNop().With("component", "test")
	l.Infof("discarded %d", 1)
	l.Error("discarded")
	assert.NoError(t, l.Flush())
}
