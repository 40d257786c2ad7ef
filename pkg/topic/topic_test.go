package topic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		err  error
	}{
		{"simple", "a/b/c", nil},
		{"leading slash", "/a", nil},
		{"sys", "$SYS/broker/load", nil},
		{"empty level", "a//b", nil},
		{"empty", "", ErrEmptyTopic},
		{"too long", strings.Repeat("a", 65536), ErrTopicTooLong},
		{"null", "a\x00b", ErrNullCharacter},
		{"plus", "a/+/b", ErrWildcardInName},
		{"hash", "a/#", ErrWildcardInName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.err, ValidateName(tt.in))
		})
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		name string
		in   string
		err  error
	}{
		{"plain", "a/b", nil},
		{"hash only", "#", nil},
		{"plus only", "+", nil},
		{"trailing hash", "a/+/#", nil},
		{"shared", "$share/group/a/+", nil},
		{"empty", "", ErrEmptyTopic},
		{"null", "a/\x00", ErrNullCharacter},
		{"hash not last", "a/#/b", ErrInvalidMultiWildcard},
		{"hash in level", "a/b#", ErrInvalidMultiWildcard},
		{"plus in level", "a/b+/c", ErrInvalidSingleWildcard},
		{"shared without filter", "$share/group", ErrInvalidSharedSubscription},
		{"shared empty name", "$share//a", ErrInvalidSharedSubscription},
		{"shared wildcard name", "$share/g+/a", ErrInvalidSharedSubscription},
		{"shared bad filter", "$share/g/a#", ErrInvalidMultiWildcard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.err, ValidateFilter(tt.in))
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		filter, name string
		want         bool
	}{
		{"a/b", "a/b", true},
		{"a/b", "a/c", false},
		{"a/+", "a/b", true},
		{"a/+", "a/b/c", false},
		{"a/+", "a/", true},
		{"a/#", "a", true},
		{"a/#", "a/b/c", true},
		{"#", "a/b", true},
		{"+/+", "a", false},
		{"+/b", "a/b", true},
		{"a/b/c", "a/b", false},
		{"#", "$SYS/load", false},
		{"+/load", "$SYS/load", false},
		{"$SYS/#", "$SYS/load", true},
		{"", "a", false},
		{"a", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.filter, tt.name), "Match(%q, %q)", tt.filter, tt.name)
	}
}

func TestSplitShared(t *testing.T) {
	name, filter, ok := SplitShared("$share/g1/sensors/+")
	assert.True(t, ok)
	assert.Equal(t, "g1", name)
	assert.Equal(t, "sensors/+", filter)

	_, _, ok = SplitShared("sensors/+")
	assert.False(t, ok)

	_, _, ok = SplitShared("$share/g1/")
	assert.False(t, ok)
}
