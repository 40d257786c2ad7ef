package packet

import "errors"

// Sentinel errors for packet parsing and encoding. Decoders wrap them with
// the name of the field that failed; classify with errors.Is.
var (
	// ErrRange indicates a value the wire format cannot represent.
	ErrRange = errors.New("value out of range")

	// ErrMalformedVarInt indicates a variable byte integer longer than 4 bytes.
	ErrMalformedVarInt = errors.New("malformed variable byte integer")

	// ErrTruncatedInput indicates the input ended inside a field.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrTruncatedPacket indicates fewer bytes than the remaining length declares.
	ErrTruncatedPacket = errors.New("truncated packet")

	// ErrExtraTrailingBytes indicates bytes left over after the last field of a packet.
	ErrExtraTrailingBytes = errors.New("extra trailing bytes")

	// ErrInvalidUTF8 indicates a string contains invalid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8 string")

	// ErrUnknownPacketType indicates a reserved packet type nibble.
	ErrUnknownPacketType = errors.New("unknown packet type")

	// ErrUnsupportedPacketType indicates a packet type with no decoder at the protocol level in use.
	ErrUnsupportedPacketType = errors.New("unsupported packet type")

	// ErrMalformedPacket indicates the packet structure is invalid.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrPacketTooLarge indicates the packet exceeds maximum allowed size.
	ErrPacketTooLarge = errors.New("packet too large")

	// ErrInvalidFlags indicates invalid fixed header flags for the packet type.
	ErrInvalidFlags = errors.New("invalid packet flags")

	// ErrInvalidQoS indicates an invalid QoS level.
	ErrInvalidQoS = errors.New("invalid QoS level")

	// ErrInvalidProtocolName indicates an unrecognized protocol name.
	ErrInvalidProtocolName = errors.New("invalid protocol name")

	// ErrInvalidProtocolVersion indicates an unsupported protocol version.
	ErrInvalidProtocolVersion = errors.New("invalid protocol version")

	// ErrInvalidTopicName indicates an invalid topic name.
	ErrInvalidTopicName = errors.New("invalid topic name")

	// ErrInvalidTopicFilter indicates an invalid topic filter.
	ErrInvalidTopicFilter = errors.New("invalid topic filter")

	// ErrInvalidPacketID indicates an invalid packet identifier.
	ErrInvalidPacketID = errors.New("invalid packet identifier")

	// ErrInvalidPropertyID indicates an unknown property identifier (MQTT 5.0).
	ErrInvalidPropertyID = errors.New("invalid property identifier")

	// ErrDuplicateProperty indicates a property that must be unique appears multiple times.
	ErrDuplicateProperty = errors.New("duplicate property")

	// ErrPropertyKind indicates a property value whose kind does not match its identifier.
	ErrPropertyKind = errors.New("property value kind mismatch")
)

// IsIncomplete reports whether err only means that more input is needed.
// Streaming callers should read more bytes and retry instead of failing.
// Truncations found inside an already bounded packet body are permanent
// and are not incomplete.
func IsIncomplete(err error) bool {
	if err == nil || errors.Is(err, ErrMalformedPacket) {
		return false
	}
	return errors.Is(err, ErrTruncatedInput) || errors.Is(err, ErrTruncatedPacket)
}

// malformedError marks a failure inside a bounded packet body. It matches
// ErrMalformedPacket as well as its cause.
type malformedError struct {
	err error
}

func (e *malformedError) Error() string { return e.err.Error() }

func (e *malformedError) Unwrap() error { return e.err }

func (e *malformedError) Is(target error) bool { return target == ErrMalformedPacket }
