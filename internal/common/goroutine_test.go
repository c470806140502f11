package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	before := GetGoroutineCount()
	done := make(chan struct{})

	SafeGo(arbor.NewLogger(), "panicker", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
	assert.Equal(t, before+1, GetGoroutineCount())
}
