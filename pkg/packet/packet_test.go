package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDecodeAndCompare encodes p, checks the encoded length against
// EncodedSize and decodes it back at the given protocol level.
func writeDecodeAndCompare(t *testing.T, p Packet, version Version) []byte {
	t.Helper()

	b, err := Encode(p)
	require.NoError(t, err)
	require.Equal(t, EncodedSize(p), len(b))

	h, n, err := DecodeFixedHeader(b)
	require.NoError(t, err)
	require.Equal(t, p.Type(), h.Type)
	require.Equal(t, p.Flags(), h.Flags)
	require.Equal(t, len(b)-n, int(h.RemainingLength))

	got, consumed, err := Decode(b, version)
	require.NoError(t, err)
	assert.Equal(t, len(b), consumed)
	assert.Equal(t, p, got)
	return b
}

func TestRoundTrip311(t *testing.T) {
	packets := []Packet{
		NewConnack(Version311, true, byte(ConnackAccepted)),
		NewConnack(Version311, false, byte(ConnackNotAuthorized)),
		NewPublish(Version311, MustString("a/b"), []byte("hello"), QoS0, false),
		&Publish{Version: Version311, TopicName: MustString("a/b"), QoS: QoS1, PacketID: 7, Retain: true, Payload: []byte{0}},
		&Publish{Version: Version311, TopicName: MustString("x"), QoS: QoS2, PacketID: 9, Dup: true},
		NewPuback(Version311, 1),
		NewPubrec(Version311, 2),
		NewPubrel(Version311, 3),
		NewPubcomp(Version311, 65535),
		NewSubscribe(Version311, 10,
			Subscription{TopicFilter: MustString("a/+"), QoS: QoS1},
			Subscription{TopicFilter: MustString("#"), QoS: QoS2}),
		NewSuback(Version311, 10, []byte{0x01, 0x80}),
		NewUnsubscribe(Version311, 11, MustString("a/+"), MustString("b")),
		NewUnsuback(Version311, 11),
		&Pingreq{},
		&Pingresp{},
		NewDisconnect(Version311),
	}
	for _, p := range packets {
		t.Run(p.Type().String(), func(t *testing.T) {
			writeDecodeAndCompare(t, p, Version311)
		})
	}
}

func TestRoundTrip5(t *testing.T) {
	user := Property{ID: PropUserProperty, Value: StringPair{Key: MustString("k"), Value: MustString("v")}}
	reason := Property{ID: PropReasonString, Value: StringValue(MustString("why"))}

	packets := []Packet{
		&Connack{Version: Version5, SessionPresent: true, Properties: Properties{
			{ID: PropAssignedClientID, Value: StringValue(MustString("gen-1"))},
			{ID: PropMaxQoS, Value: ByteValue(1)},
		}},
		&Publish{Version: Version5, TopicName: MustString("t"), QoS: QoS1, PacketID: 3, Payload: []byte("p"),
			Properties: Properties{
				{ID: PropSubscriptionID, Value: VarIntValue(1)},
				{ID: PropSubscriptionID, Value: VarIntValue(300)},
				{ID: PropCorrelationData, Value: BinaryValue(MustBinary([]byte{1, 2}))},
				user,
			}},
		&Publish{Version: Version5, Properties: Properties{{ID: PropTopicAlias, Value: Uint16Value(4)}}},
		NewPuback(Version5, 5),
		&Ack{PacketType: TypePubrec, Version: Version5, PacketID: 6, ReasonCode: ReasonNoMatchingSubscriber},
		&Ack{PacketType: TypePubrel, Version: Version5, PacketID: 7, ReasonCode: ReasonPacketIDNotFound, Properties: Properties{reason}},
		&Subscribe{Version: Version5, PacketID: 8, Subscriptions: []Subscription{
			{TopicFilter: MustString("$share/g/a"), QoS: QoS1, RetainAsPublished: true, RetainHandling: 2},
			{TopicFilter: MustString("b"), NoLocal: true},
		}},
		&Suback{Version: Version5, PacketID: 8, ReasonCodes: []byte{0x01, 0x00}, Properties: Properties{reason}},
		&Unsubscribe{Version: Version5, PacketID: 9, TopicFilters: []String{MustString("a")}, Properties: Properties{user}},
		NewUnsuback(Version5, 9, ReasonSuccess, ReasonNoSubscriptionExist),
		NewDisconnect(Version5),
		&Disconnect{Version: Version5, ReasonCode: ReasonServerShuttingDown, Properties: Properties{
			{ID: PropServerReference, Value: StringValue(MustString("other:1883"))},
		}},
		&Auth{},
		&Auth{ReasonCode: ReasonContinueAuth, Properties: Properties{
			{ID: PropAuthMethod, Value: StringValue(MustString("SCRAM-SHA-1"))},
			{ID: PropAuthData, Value: BinaryValue(MustBinary([]byte("client-first")))},
		}},
	}
	for _, p := range packets {
		t.Run(p.Type().String(), func(t *testing.T) {
			writeDecodeAndCompare(t, p, Version5)
		})
	}
}

func TestAckOmitsSuccessReason(t *testing.T) {
	b, err := Encode(NewPuback(Version5, 5))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0x02, 0x00, 0x05}, b)

	b, err = Encode(NewPubrel(Version311, 5))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x62, 0x02, 0x00, 0x05}, b)

	// Reason code without properties is a legal MQTT 5.0 short form.
	p, _, err := Decode([]byte{0x50, 0x03, 0x00, 0x05, 0x10}, Version5)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoMatchingSubscriber, p.(*Ack).ReasonCode)
}

func TestEncodeSimplePackets(t *testing.T) {
	tests := []struct {
		p    Packet
		want []byte
	}{
		{&Pingreq{}, []byte{0xC0, 0x00}},
		{&Pingresp{}, []byte{0xD0, 0x00}},
		{NewDisconnect(Version311), []byte{0xE0, 0x00}},
		{NewDisconnect(Version5), []byte{0xE0, 0x00}},
		{NewConnack(Version311, true, 0), []byte{0x20, 0x02, 0x01, 0x00}},
		{NewConnack(Version5, false, 0), []byte{0x20, 0x03, 0x00, 0x00, 0x00}},
		{&Auth{}, []byte{0xF0, 0x00}},
	}
	for _, tt := range tests {
		b, err := Encode(tt.p)
		require.NoError(t, err)
		assert.Equal(t, tt.want, b, tt.p.Type().String())
	}
}

func TestPublishEncoding(t *testing.T) {
	p := &Publish{Version: Version311, TopicName: MustString("a/b"), QoS: QoS1, PacketID: 10, Payload: []byte("hi")}
	b, err := Encode(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x32, 0x09, 0x00, 0x03, 'a', '/', 'b', 0x00, 0x0A, 'h', 'i'}, b)
	assert.Equal(t, "PUBLISH (d0, q1, r0, m10, 'a/b', ... (2 bytes))", p.String())
}

func TestDecodeUnknownType(t *testing.T) {
	_, _, err := Decode([]byte{0x00, 0x00}, Version311)
	assert.ErrorIs(t, err, ErrUnknownPacketType)
	assert.False(t, IsIncomplete(err))
}

func TestDecodeTruncatedPacket(t *testing.T) {
	// CONNECT declaring 25 bytes with only 4 present.
	p, n, err := Decode([]byte{0x10, 0x19, 0x00, 0x04, 'M', 'Q'}, Version311)
	assert.Nil(t, p)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrTruncatedPacket)
	assert.True(t, IsIncomplete(err))
}

func TestDecodeBoundedByRemainingLength(t *testing.T) {
	// A PUBLISH followed by a PINGREQ: the first decode must stop at its
	// own remaining length.
	pub, err := Encode(NewPublish(Version311, MustString("t"), []byte("abc"), QoS0, false))
	require.NoError(t, err)
	stream := append(pub, 0xC0, 0x00)

	p, n, err := Decode(stream, Version311)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), p.(*Publish).Payload)
	assert.Equal(t, len(pub), n)

	p, n, err = Decode(stream[n:], Version311)
	require.NoError(t, err)
	assert.IsType(t, &Pingreq{}, p)
	assert.Equal(t, 2, n)
}

func TestDecodeBodyLengthMismatch(t *testing.T) {
	h := FixedHeader{Type: TypePingreq, RemainingLength: 0}
	_, err := DecodeBody(h, []byte{0x00}, Version311)
	assert.ErrorIs(t, err, ErrExtraTrailingBytes)

	h = FixedHeader{Type: TypePuback, RemainingLength: 2}
	_, err = DecodeBody(h, []byte{0x00}, Version311)
	assert.ErrorIs(t, err, ErrTruncatedPacket)
}

func TestDecodeExtraTrailingBytes(t *testing.T) {
	tests := map[string][]byte{
		"pingreq":    {0xC0, 0x01, 0x00},
		"puback 311": {0x40, 0x03, 0x00, 0x01, 0x00},
		"connack":    {0x20, 0x03, 0x00, 0x00, 0x00},
		"disconnect": {0xE0, 0x01, 0x00},
		"unsuback":   {0xB0, 0x03, 0x00, 0x01, 0x00},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(in, Version311)
			assert.ErrorIs(t, err, ErrExtraTrailingBytes)
			assert.ErrorIs(t, err, ErrMalformedPacket)
			assert.False(t, IsIncomplete(err))
		})
	}
}

func TestDecodeUnsupportedType(t *testing.T) {
	_, _, err := Decode([]byte{0xF0, 0x00}, Version311)
	assert.ErrorIs(t, err, ErrUnsupportedPacketType)
	assert.False(t, Supported(TypeAuth, Version311))
	assert.True(t, Supported(TypeAuth, Version5))

	p, _, err := Decode([]byte{0xF0, 0x00}, Version5)
	require.NoError(t, err)
	assert.IsType(t, &Auth{}, p)
}

func TestDecodeInvalidFlags(t *testing.T) {
	tests := map[string][]byte{
		"pingreq":     {0xC1, 0x00},
		"pubrel":      {0x60, 0x02, 0x00, 0x01},
		"subscribe":   {0x80, 0x06, 0x00, 0x01, 0x00, 0x01, 'a', 0x00},
		"unsubscribe": {0xA0, 0x05, 0x00, 0x01, 0x00, 0x01, 'a'},
		"puback":      {0x42, 0x02, 0x00, 0x01},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(in, Version311)
			assert.ErrorIs(t, err, ErrInvalidFlags)
		})
	}
}

func TestDecodePublishErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		err  error
	}{
		{"qos 3", []byte{0x36, 0x05, 0x00, 0x01, 't', 0x00, 0x01}, ErrInvalidQoS},
		{"dup at qos 0", []byte{0x38, 0x03, 0x00, 0x01, 't'}, ErrMalformedPacket},
		{"zero packet id", []byte{0x32, 0x05, 0x00, 0x01, 't', 0x00, 0x00}, ErrInvalidPacketID},
		{"wildcard topic", []byte{0x30, 0x03, 0x00, 0x01, '+'}, ErrInvalidTopicName},
		{"empty topic", []byte{0x30, 0x02, 0x00, 0x00}, ErrInvalidTopicName},
		{"topic past body", []byte{0x30, 0x03, 0x00, 0x05, 't'}, ErrTruncatedPacket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.in, Version311)
			assert.ErrorIs(t, err, tt.err)
			assert.False(t, IsIncomplete(err))
		})
	}
}

func TestDecodeSubscribeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		err  error
	}{
		{"no subscriptions", []byte{0x82, 0x02, 0x00, 0x01}, ErrMalformedPacket},
		{"bad filter", []byte{0x82, 0x07, 0x00, 0x01, 0x00, 0x02, 'a', '#', 0x00}, ErrInvalidTopicFilter},
		{"qos 3", []byte{0x82, 0x06, 0x00, 0x01, 0x00, 0x01, 'a', 0x03}, ErrInvalidQoS},
		{"reserved option bits", []byte{0x82, 0x06, 0x00, 0x01, 0x00, 0x01, 'a', 0x04}, ErrMalformedPacket},
		{"missing options", []byte{0x82, 0x05, 0x00, 0x01, 0x00, 0x01, 'a'}, ErrTruncatedPacket},
		{"zero packet id", []byte{0x82, 0x06, 0x00, 0x00, 0x00, 0x01, 'a', 0x00}, ErrInvalidPacketID},
		{"unsubscribe empty", []byte{0xA2, 0x02, 0x00, 0x01}, ErrMalformedPacket},
		{"unsubscribe bad filter", []byte{0xA2, 0x05, 0x00, 0x01, 0x00, 0x01, 0x00}, ErrMalformedPacket},
		{"suback no codes", []byte{0x90, 0x02, 0x00, 0x01}, ErrTruncatedPacket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.in, Version311)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDecodeConnackReservedFlags(t *testing.T) {
	_, _, err := Decode([]byte{0x20, 0x02, 0x02, 0x00}, Version311)
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestEncodeValidation(t *testing.T) {
	tests := []struct {
		name string
		p    Packet
		err  error
	}{
		{"publish qos 3", &Publish{TopicName: MustString("t"), QoS: 3, PacketID: 1}, ErrInvalidQoS},
		{"publish missing id", &Publish{TopicName: MustString("t"), QoS: QoS1}, ErrInvalidPacketID},
		{"publish wildcard", &Publish{TopicName: MustString("a/#")}, ErrInvalidTopicName},
		{"subscribe empty", NewSubscribe(Version311, 1), ErrMalformedPacket},
		{"subscribe bad filter", NewSubscribe(Version311, 1, Subscription{TopicFilter: MustString("a#")}), ErrInvalidTopicFilter},
		{"unsubscribe zero id", NewUnsubscribe(Version311, 0, MustString("a")), ErrInvalidPacketID},
		{"ack wrong type", &Ack{PacketType: TypePublish, PacketID: 1}, ErrUnsupportedPacketType},
		{"property kind", &Disconnect{Version: Version5, ReasonCode: 1, Properties: Properties{
			{ID: PropSessionExpiry, Value: Uint16Value(1)},
		}}, ErrPropertyKind},
		{"duplicate property", &Connack{Version: Version5, Properties: Properties{
			{ID: PropMaxQoS, Value: ByteValue(1)},
			{ID: PropMaxQoS, Value: ByteValue(0)},
		}}, ErrDuplicateProperty},
		{"nil property value", &Connect{ProtocolVersion: Version5, ClientID: MustString("c"), Properties: Properties{
			{ID: PropSessionExpiry},
		}}, ErrPropertyKind},
		{"connect level 0", &Connect{ClientID: MustString("c")}, ErrInvalidProtocolVersion},
		{"connect unknown name", &Connect{ProtocolName: MustString("FOO"), ProtocolVersion: Version311}, ErrInvalidProtocolName},
		{"connect MQIsdp at 5.0", &Connect{ProtocolName: MustString("MQIsdp"), ProtocolVersion: Version5}, ErrInvalidProtocolVersion},
		{"connect MQTT at 3.1", &Connect{ProtocolName: MustString("MQTT"), ProtocolVersion: Version31}, ErrInvalidProtocolVersion},
		{"suback zero id", NewSuback(Version311, 0, []byte{0x00}), ErrInvalidPacketID},
		{"suback no codes", NewSuback(Version311, 1, nil), ErrMalformedPacket},
		{"unsuback zero id", NewUnsuback(Version311, 0), ErrInvalidPacketID},
		{"unsuback zero id 5.0", NewUnsuback(Version5, 0, ReasonSuccess), ErrInvalidPacketID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := []byte{0x01}
			out, err := Append(dst, tt.p)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, []byte{0x01}, out)

			b, err := Encode(tt.p)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, b)
		})
	}
}

// Whatever Encode accepts must decode again at the same level.
func TestEncodeDecodes(t *testing.T) {
	tests := []struct {
		name    string
		p       Packet
		version Version
	}{
		{"connect 3.1", NewConnectVersion(Version31, MustString("c"), 10), Version31},
		{"connect 3.1.1", NewConnectVersion(Version311, MustString("c"), 10), Version311},
		{"connect 5.0", NewConnectVersion(Version5, MustString("c"), 10), Version5},
		{"connect derived name", &Connect{ProtocolVersion: Version31, ClientID: MustString("c")}, Version31},
		{"suback", NewSuback(Version311, 1, []byte{0x00}), Version311},
		{"suback 5.0", NewSuback(Version5, 1, []byte{0x00, 0x87}), Version5},
		{"unsuback", NewUnsuback(Version311, 1), Version311},
		{"unsuback 5.0 no codes", NewUnsuback(Version5, 1), Version5},
		{"connack properties", &Connack{Version: Version5, Properties: Properties{
			{ID: PropSessionExpiry, Value: Uint32Value(60)},
		}}, Version5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.p)
			require.NoError(t, err)

			p, n, err := Decode(b, tt.version)
			require.NoError(t, err)
			assert.Equal(t, len(b), n)
			assert.Equal(t, tt.p.Type(), p.Type())

			again, err := Encode(p)
			require.NoError(t, err)
			assert.Equal(t, b, again)
		})
	}
}

func TestDecodedPacketOwnsData(t *testing.T) {
	b, err := Encode(NewPublish(Version311, MustString("t"), []byte("abc"), QoS0, false))
	require.NoError(t, err)

	p, _, err := Decode(b, Version311)
	require.NoError(t, err)
	for i := range b {
		b[i] = 0
	}
	assert.Equal(t, "t", p.(*Publish).TopicName.String())
	assert.Equal(t, []byte("abc"), p.(*Publish).Payload)
}
