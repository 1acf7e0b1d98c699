package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotify(t *testing.T) {
	t.Cleanup(func() { SetNotifyImpl(nil) })

	Notify("dropped", "{}")

	var got []string
	SetNotifyImpl(func(topic, payload string) { got = append(got, topic+" "+payload) })
	Notify("news.ingested", `{"inserted":2}`)
	assert.Equal(t, []string{`news.ingested {"inserted":2}`}, got)

	SetNotifyImpl(nil)
	Notify("engine.reloaded", "{}")
	assert.Len(t, got, 1)
}
