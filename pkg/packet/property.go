package packet

import (
	"fmt"

	"github.com/pkg/errors"
)

// PropertyID represents an MQTT 5.0 property identifier. Identifiers are
// variable byte integers on the wire.
// MQTT 5.0 Section 2.2.2.2
type PropertyID uint32

// Property identifiers as defined in MQTT 5.0 Table 2-4
const (
	PropPayloadFormat        PropertyID = 0x01 // Byte - PUBLISH, Will Properties
	PropMessageExpiry        PropertyID = 0x02 // Four Byte Integer - PUBLISH, Will Properties
	PropContentType          PropertyID = 0x03 // UTF-8 String - PUBLISH, Will Properties
	PropResponseTopic        PropertyID = 0x08 // UTF-8 String - PUBLISH, Will Properties
	PropCorrelationData      PropertyID = 0x09 // Binary Data - PUBLISH, Will Properties
	PropSubscriptionID       PropertyID = 0x0B // Variable Byte Integer - PUBLISH, SUBSCRIBE
	PropSessionExpiry        PropertyID = 0x11 // Four Byte Integer - CONNECT, CONNACK, DISCONNECT
	PropAssignedClientID     PropertyID = 0x12 // UTF-8 String - CONNACK
	PropServerKeepAlive      PropertyID = 0x13 // Two Byte Integer - CONNACK
	PropAuthMethod           PropertyID = 0x15 // UTF-8 String - CONNECT, CONNACK, AUTH
	PropAuthData             PropertyID = 0x16 // Binary Data - CONNECT, CONNACK, AUTH
	PropRequestProblemInfo   PropertyID = 0x17 // Byte - CONNECT
	PropWillDelayInterval    PropertyID = 0x18 // Four Byte Integer - Will Properties
	PropRequestResponseInfo  PropertyID = 0x19 // Byte - CONNECT
	PropResponseInfo         PropertyID = 0x1A // UTF-8 String - CONNACK
	PropServerReference      PropertyID = 0x1C // UTF-8 String - CONNACK, DISCONNECT
	PropReasonString         PropertyID = 0x1F // UTF-8 String - All except CONNECT
	PropReceiveMax           PropertyID = 0x21 // Two Byte Integer - CONNECT, CONNACK
	PropTopicAliasMax        PropertyID = 0x22 // Two Byte Integer - CONNECT, CONNACK
	PropTopicAlias           PropertyID = 0x23 // Two Byte Integer - PUBLISH
	PropMaxQoS               PropertyID = 0x24 // Byte - CONNACK
	PropRetainAvailable      PropertyID = 0x25 // Byte - CONNACK
	PropUserProperty         PropertyID = 0x26 // UTF-8 String Pair - All packets
	PropMaxPacketSize        PropertyID = 0x27 // Four Byte Integer - CONNECT, CONNACK
	PropWildcardSubAvailable PropertyID = 0x28 // Byte - CONNACK
	PropSubIDAvailable       PropertyID = 0x29 // Byte - CONNACK
	PropSharedSubAvailable   PropertyID = 0x2A // Byte - CONNACK
)

// PropertyType is the kind of value a property carries.
type PropertyType byte

const (
	PropertyTypeByte        PropertyType = iota + 1 // Single byte
	PropertyTypeTwoByteInt                          // Two byte integer
	PropertyTypeFourByteInt                         // Four byte integer
	PropertyTypeVarInt                              // Variable byte integer
	PropertyTypeString                              // UTF-8 encoded string
	PropertyTypeBinary                              // Binary data
	PropertyTypeStringPair                          // UTF-8 string pair
)

func (t PropertyType) String() string {
	switch t {
	case PropertyTypeByte:
		return "byte"
	case PropertyTypeTwoByteInt:
		return "two byte integer"
	case PropertyTypeFourByteInt:
		return "four byte integer"
	case PropertyTypeVarInt:
		return "variable byte integer"
	case PropertyTypeString:
		return "string"
	case PropertyTypeBinary:
		return "binary data"
	case PropertyTypeStringPair:
		return "string pair"
	default:
		return "invalid"
	}
}

type propertyInfo struct {
	name       string
	typ        PropertyType
	repeatable bool
}

// propertyTable is the fixed identifier to value kind mapping of MQTT 5.0 Table 2-4.
var propertyTable = map[PropertyID]propertyInfo{
	PropPayloadFormat:        {"Payload Format Indicator", PropertyTypeByte, false},
	PropMessageExpiry:        {"Message Expiry Interval", PropertyTypeFourByteInt, false},
	PropContentType:          {"Content Type", PropertyTypeString, false},
	PropResponseTopic:        {"Response Topic", PropertyTypeString, false},
	PropCorrelationData:      {"Correlation Data", PropertyTypeBinary, false},
	PropSubscriptionID:       {"Subscription Identifier", PropertyTypeVarInt, true},
	PropSessionExpiry:        {"Session Expiry Interval", PropertyTypeFourByteInt, false},
	PropAssignedClientID:     {"Assigned Client Identifier", PropertyTypeString, false},
	PropServerKeepAlive:      {"Server Keep Alive", PropertyTypeTwoByteInt, false},
	PropAuthMethod:           {"Authentication Method", PropertyTypeString, false},
	PropAuthData:             {"Authentication Data", PropertyTypeBinary, false},
	PropRequestProblemInfo:   {"Request Problem Information", PropertyTypeByte, false},
	PropWillDelayInterval:    {"Will Delay Interval", PropertyTypeFourByteInt, false},
	PropRequestResponseInfo:  {"Request Response Information", PropertyTypeByte, false},
	PropResponseInfo:         {"Response Information", PropertyTypeString, false},
	PropServerReference:      {"Server Reference", PropertyTypeString, false},
	PropReasonString:         {"Reason String", PropertyTypeString, false},
	PropReceiveMax:           {"Receive Maximum", PropertyTypeTwoByteInt, false},
	PropTopicAliasMax:        {"Topic Alias Maximum", PropertyTypeTwoByteInt, false},
	PropTopicAlias:           {"Topic Alias", PropertyTypeTwoByteInt, false},
	PropMaxQoS:               {"Maximum QoS", PropertyTypeByte, false},
	PropRetainAvailable:      {"Retain Available", PropertyTypeByte, false},
	PropUserProperty:         {"User Property", PropertyTypeStringPair, true},
	PropMaxPacketSize:        {"Maximum Packet Size", PropertyTypeFourByteInt, false},
	PropWildcardSubAvailable: {"Wildcard Subscription Available", PropertyTypeByte, false},
	PropSubIDAvailable:       {"Subscription Identifier Available", PropertyTypeByte, false},
	PropSharedSubAvailable:   {"Shared Subscription Available", PropertyTypeByte, false},
}

// Type returns the value kind for a property identifier and whether the
// identifier is defined at all.
func (p PropertyID) Type() (PropertyType, bool) {
	info, ok := propertyTable[p]
	return info.typ, ok
}

// Repeatable reports whether the property may appear more than once in a set.
func (p PropertyID) Repeatable() bool {
	return propertyTable[p].repeatable
}

// String returns the name of the property.
func (p PropertyID) String() string {
	if info, ok := propertyTable[p]; ok {
		return info.name
	}
	return fmt.Sprintf("Unknown Property 0x%02X", uint32(p))
}

// PropertyValue is the value half of a property. The set of implementations
// is closed: ByteValue, Uint16Value, Uint32Value, VarIntValue, StringValue,
// BinaryValue and StringPair.
type PropertyValue interface {
	// Type returns the value kind.
	Type() PropertyType

	size() int
	appendTo(dst []byte) []byte
}

// ByteValue is a single byte property value.
type ByteValue byte

// Uint16Value is a two byte integer property value.
type Uint16Value uint16

// Uint32Value is a four byte integer property value.
type Uint32Value uint32

// VarIntValue is a variable byte integer property value.
type VarIntValue uint32

// StringValue is a UTF-8 string property value.
type StringValue String

// BinaryValue is a binary data property value.
type BinaryValue Binary

// StringPair represents a key-value pair of UTF-8 strings.
type StringPair struct {
	Key   String
	Value String
}

func (ByteValue) Type() PropertyType   { return PropertyTypeByte }
func (Uint16Value) Type() PropertyType { return PropertyTypeTwoByteInt }
func (Uint32Value) Type() PropertyType { return PropertyTypeFourByteInt }
func (VarIntValue) Type() PropertyType { return PropertyTypeVarInt }
func (StringValue) Type() PropertyType { return PropertyTypeString }
func (BinaryValue) Type() PropertyType { return PropertyTypeBinary }
func (StringPair) Type() PropertyType  { return PropertyTypeStringPair }

func (ByteValue) size() int     { return 1 }
func (Uint16Value) size() int   { return 2 }
func (Uint32Value) size() int   { return 4 }
func (v VarIntValue) size() int { return VarIntSize(uint32(v)) }
func (v StringValue) size() int { return String(v).encodedSize() }
func (v BinaryValue) size() int { return Binary(v).encodedSize() }
func (v StringPair) size() int  { return v.Key.encodedSize() + v.Value.encodedSize() }

func (v ByteValue) appendTo(dst []byte) []byte   { return append(dst, byte(v)) }
func (v Uint16Value) appendTo(dst []byte) []byte { return AppendUint16(dst, uint16(v)) }
func (v Uint32Value) appendTo(dst []byte) []byte { return AppendUint32(dst, uint32(v)) }
func (v VarIntValue) appendTo(dst []byte) []byte { return appendVarInt(dst, uint32(v)) }
func (v StringValue) appendTo(dst []byte) []byte { return AppendString(dst, String(v)) }
func (v BinaryValue) appendTo(dst []byte) []byte { return AppendBinary(dst, Binary(v)) }
func (v StringPair) appendTo(dst []byte) []byte {
	return AppendString(AppendString(dst, v.Key), v.Value)
}

// Property is an identifier paired with its value.
type Property struct {
	ID    PropertyID
	Value PropertyValue
}

// Validate checks the identifier against the protocol table and the value
// against the kind the identifier requires.
func (p Property) Validate() error {
	typ, ok := p.ID.Type()
	if !ok {
		return errors.Wrapf(ErrInvalidPropertyID, "identifier 0x%02X", uint32(p.ID))
	}
	if p.Value == nil || p.Value.Type() != typ {
		return errors.Wrapf(ErrPropertyKind, "%s requires %s", p.ID, typ)
	}
	if v, ok := p.Value.(VarIntValue); ok && v > MaxVarInt {
		return errors.Wrapf(ErrRange, "%s value %d", p.ID, uint32(v))
	}
	return nil
}

func (p Property) size() int {
	if p.Value == nil {
		return VarIntSize(uint32(p.ID))
	}
	return VarIntSize(uint32(p.ID)) + p.Value.size()
}

func (p Property) appendTo(dst []byte) []byte {
	dst = appendVarInt(dst, uint32(p.ID))
	if p.Value == nil {
		return dst
	}
	return p.Value.appendTo(dst)
}

func (p Property) String() string {
	switch v := p.Value.(type) {
	case StringValue:
		return fmt.Sprintf("%s=%q", p.ID, String(v).String())
	case BinaryValue:
		return fmt.Sprintf("%s=(%d bytes)", p.ID, Binary(v).Len())
	case StringPair:
		return fmt.Sprintf("%s=%q:%q", p.ID, v.Key.String(), v.Value.String())
	default:
		return fmt.Sprintf("%s=%v", p.ID, v)
	}
}

// AppendProperty validates p and appends its encoding (identifier, then value) to dst.
func AppendProperty(dst []byte, p Property) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return dst, err
	}
	return p.appendTo(dst), nil
}

// EncodeProperty returns the encoding of a single property.
func EncodeProperty(p Property) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p.appendTo(make([]byte, 0, p.size())), nil
}

// DecodeProperty decodes one property from the start of buf. The value is
// decoded according to the kind the protocol assigns to the identifier.
func DecodeProperty(buf []byte) (Property, int, error) {
	id, n, err := DecodeVarInt(buf)
	if err != nil {
		return Property{}, 0, errors.Wrap(err, "property identifier")
	}
	pid := PropertyID(id)
	typ, ok := pid.Type()
	if !ok {
		return Property{}, 0, errors.Wrapf(ErrInvalidPropertyID, "identifier 0x%02X", id)
	}

	v, m, err := decodePropertyValue(typ, buf[n:])
	if err != nil {
		return Property{}, 0, errors.Wrap(err, pid.String())
	}
	return Property{ID: pid, Value: v}, n + m, nil
}

func decodePropertyValue(typ PropertyType, buf []byte) (PropertyValue, int, error) {
	switch typ {
	case PropertyTypeByte:
		v, n, err := DecodeUint8(buf)
		return ByteValue(v), n, err
	case PropertyTypeTwoByteInt:
		v, n, err := DecodeUint16(buf)
		return Uint16Value(v), n, err
	case PropertyTypeFourByteInt:
		v, n, err := DecodeUint32(buf)
		return Uint32Value(v), n, err
	case PropertyTypeVarInt:
		v, n, err := DecodeVarInt(buf)
		return VarIntValue(v), n, err
	case PropertyTypeString:
		s, n, err := DecodeString(buf)
		return StringValue(s), n, err
	case PropertyTypeBinary:
		b, n, err := DecodeBinary(buf)
		return BinaryValue(b), n, err
	case PropertyTypeStringPair:
		k, n, err := DecodeString(buf)
		if err != nil {
			return nil, 0, err
		}
		v, m, err := DecodeString(buf[n:])
		if err != nil {
			return nil, 0, err
		}
		return StringPair{Key: k, Value: v}, n + m, nil
	}
	return nil, 0, ErrPropertyKind
}

// Properties is an ordered property set as carried by MQTT 5.0 packets.
// Order is preserved through a decode/encode round trip. A nil set encodes
// as a zero property length.
type Properties []Property

// Size returns the encoded size of the properties without the length prefix.
func (ps Properties) Size() int {
	size := 0
	for _, p := range ps {
		size += p.size()
	}
	return size
}

// EncodedSize returns the total size of encoded properties (including length prefix).
func (ps Properties) EncodedSize() int {
	size := ps.Size()
	return VarIntSize(uint32(size)) + size
}

// Validate checks every property and rejects duplicates of non-repeatable identifiers.
func (ps Properties) Validate() error {
	seen := make(map[PropertyID]bool, len(ps))
	for _, p := range ps {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.ID] && !p.ID.Repeatable() {
			return errors.Wrap(ErrDuplicateProperty, p.ID.String())
		}
		seen[p.ID] = true
	}
	if ps.Size() > MaxVarInt {
		return errors.Wrap(ErrRange, "property length")
	}
	return nil
}

// Append appends the length-prefixed property set to dst. The set must
// have passed Validate.
func (ps Properties) Append(dst []byte) []byte {
	dst = appendVarInt(dst, uint32(ps.Size()))
	for _, p := range ps {
		dst = p.appendTo(dst)
	}
	return dst
}

// Encode validates the set and returns its length-prefixed encoding.
func (ps Properties) Encode() ([]byte, error) {
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	return ps.Append(make([]byte, 0, ps.EncodedSize())), nil
}

// DecodeProperties decodes a length-prefixed property set from buf and
// returns the set with the number of bytes consumed.
// MQTT 5.0 Section 2.2.2
func DecodeProperties(buf []byte) (Properties, int, error) {
	propLen, n, err := DecodeVarInt(buf)
	if err != nil {
		return nil, 0, errors.Wrap(err, "property length")
	}
	if uint64(len(buf)-n) < uint64(propLen) {
		return nil, 0, errors.Wrap(ErrTruncatedInput, "properties")
	}

	end := n + int(propLen)
	var ps Properties
	seen := make(map[PropertyID]bool)
	for pos := n; pos < end; {
		p, m, err := DecodeProperty(buf[pos:end])
		if err != nil {
			// The set is bounded by its own length; running past it is not
			// cured by more input.
			return nil, 0, &malformedError{err: errors.Wrap(err, "properties")}
		}
		if seen[p.ID] && !p.ID.Repeatable() {
			return nil, 0, &malformedError{err: errors.Wrap(ErrDuplicateProperty, p.ID.String())}
		}
		seen[p.ID] = true
		ps = append(ps, p)
		pos += m
	}
	return ps, end, nil
}

// Get returns the first value for id.
func (ps Properties) Get(id PropertyID) (PropertyValue, bool) {
	for _, p := range ps {
		if p.ID == id {
			return p.Value, true
		}
	}
	return nil, false
}

// All returns every value for id in wire order.
func (ps Properties) All(id PropertyID) []PropertyValue {
	var vs []PropertyValue
	for _, p := range ps {
		if p.ID == id {
			vs = append(vs, p.Value)
		}
	}
	return vs
}

// Has reports whether the set contains id.
func (ps Properties) Has(id PropertyID) bool {
	_, ok := ps.Get(id)
	return ok
}

// Uint returns the integer value for id, whatever its integer width.
func (ps Properties) Uint(id PropertyID) (uint32, bool) {
	v, ok := ps.Get(id)
	if !ok {
		return 0, false
	}
	switch v := v.(type) {
	case ByteValue:
		return uint32(v), true
	case Uint16Value:
		return uint32(v), true
	case Uint32Value:
		return uint32(v), true
	case VarIntValue:
		return uint32(v), true
	}
	return 0, false
}

// Text returns the string value for id.
func (ps Properties) Text(id PropertyID) (string, bool) {
	v, ok := ps.Get(id)
	if !ok {
		return "", false
	}
	s, ok := v.(StringValue)
	return String(s).String(), ok
}

// UserProperties returns the user properties in wire order.
func (ps Properties) UserProperties() []StringPair {
	var pairs []StringPair
	for _, v := range ps.All(PropUserProperty) {
		if sp, ok := v.(StringPair); ok {
			pairs = append(pairs, sp)
		}
	}
	return pairs
}
