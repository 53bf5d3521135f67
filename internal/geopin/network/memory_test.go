package network

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHubDelivers(t *testing.T) {
	hub := NewMemoryHub()
	a := hub.Join("peer-a")
	b := hub.Join("peer-b")

	chA := a.Subscribe()
	chB := b.Subscribe()

	require.NoError(t, a.SendMessage(&PubSubMessage{Kind: EventMessageKind, Data: []byte("hi")}))

	msg := <-chB
	assert.Equal(t, "peer-a", msg.From)
	assert.Equal(t, EventMessageKind, msg.Kind)
	assert.Equal(t, []byte("hi"), msg.Data)
	assert.NotEmpty(t, msg.Id)

	select {
	case <-chA:
		t.Fatal("sender received its own message")
	default:
	}
	assert.Len(t, a.Sent(), 1)
}

func TestMemoryUpload(t *testing.T) {
	n := NewMemoryHub().Join("peer")
	c, err := n.UploadAndPin(strings.NewReader("content"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c, "Qm"))

	b, ok := n.File(c)
	require.True(t, ok)
	assert.Equal(t, "content", string(b))
}
