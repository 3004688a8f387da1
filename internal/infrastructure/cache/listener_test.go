package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifierDispatch(t *testing.T) {
	n := NewNotifier(nil)

	var got []string
	n.Subscribe(ChannelNumberingPrefixes, func(channel, payload string) {
		got = append(got, channel+":"+payload)
	})
	n.Subscribe(ChannelNumberingPrefixes, func(string, string) { panic("boom") })
	n.Subscribe(ChannelNumberingPrefixes, func(_, payload string) {
		got = append(got, "second:"+payload)
	})

	n.Dispatch(ChannelNumberingPrefixes, "goods_receipt")
	n.Dispatch("unrelated", "x")

	assert.Equal(t, []string{ChannelNumberingPrefixes + ":goods_receipt", "second:goods_receipt"}, got)
	assert.ElementsMatch(t, []string{ChannelNumberingPrefixes}, n.channels())
}

func TestNotifierStopWithoutStart(t *testing.T) {
	n := NewNotifier(nil)
	assert.NotPanics(t, n.Stop)
}
