package transport

import (
	"context"
	"testing"
	"time"

	"github.com/bromq-dev/mqttwire/pkg/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestBucket(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := RateLimit{Rate: 2, Interval: time.Second, Burst: 3}.newBucket(clock.now)

	for i := 0; i < 3; i++ {
		assert.True(t, b.take(), "burst %d", i)
	}
	assert.False(t, b.take())

	clock.t = clock.t.Add(500 * time.Millisecond)
	assert.True(t, b.take())
	assert.False(t, b.take())

	clock.t = clock.t.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, b.take())
	}
	assert.False(t, b.take())
}

func TestBucketDisabled(t *testing.T) {
	b := RateLimit{}.newBucket(time.Now)
	assert.Nil(t, b)
	assert.True(t, b.take())
}

func TestResponderPublishLimit(t *testing.T) {
	c, server := pipe(t, Options{})

	clock := &fakeClock{t: time.Unix(1000, 0)}
	r := &Responder{
		Options:      Options{Logger: testLogger()},
		PublishLimit: RateLimit{Rate: 1, Burst: 1},
		now:          clock.now,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.HandleConnection(server)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connect := packet.NewConnect(packet.MustString("limited"), 0)
	connect.ProtocolVersion = packet.Version5
	require.NoError(t, c.WritePacket(ctx, connect))
	_, err := c.ReadPacket(ctx)
	require.NoError(t, err)

	pub := packet.NewPublish(packet.Version5, packet.MustString("t"), []byte("1"), packet.QoS1, false)
	pub.PacketID = 1
	require.NoError(t, c.WritePacket(ctx, pub))
	p, err := c.ReadPacket(ctx)
	require.NoError(t, err)
	assert.Equal(t, packet.TypePuback, p.Type())

	pub.PacketID = 2
	require.NoError(t, c.WritePacket(ctx, pub))
	p, err = c.ReadPacket(ctx)
	require.NoError(t, err)
	require.IsType(t, &packet.Disconnect{}, p)
	assert.Equal(t, packet.ReasonMessageRateTooHigh, p.(*packet.Disconnect).ReasonCode)

	<-done
}
