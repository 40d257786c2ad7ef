// Package topic validates MQTT topic names and filters and matches names
// against filters, following MQTT 3.1.1 Section 4.7 and MQTT 5.0 Section 4.7.
package topic

import (
	"errors"
	"strings"
)

const (
	// Separator is the topic level separator.
	Separator = '/'

	// MultiWildcard matches any number of levels (must be last).
	MultiWildcard = '#'

	// SingleWildcard matches exactly one level.
	SingleWildcard = '+'

	// SysPrefix is the prefix for system topics.
	SysPrefix = '$'

	sharePrefix = "$share/"
	maxLength   = 65535
)

// Validation failures. The packet codec reports them wrapped in its own
// topic name and filter errors.
var (
	ErrEmptyTopic     = errors.New("empty topic")
	ErrTopicTooLong   = errors.New("topic longer than 65535 bytes")
	ErrNullCharacter  = errors.New("topic contains U+0000")
	ErrWildcardInName = errors.New("wildcard in topic name")

	// ErrInvalidMultiWildcard is a '#' that is not a whole, final level.
	ErrInvalidMultiWildcard = errors.New("misplaced multi-level wildcard")

	// ErrInvalidSingleWildcard is a '+' that is not a whole level.
	ErrInvalidSingleWildcard = errors.New("misplaced single-level wildcard")

	// ErrInvalidSharedSubscription is a $share/ filter without a valid
	// share name and filter.
	ErrInvalidSharedSubscription = errors.New("malformed shared subscription")
)

// ValidateName validates a topic name as carried by PUBLISH and the will
// message. Wildcards are not allowed.
func ValidateName(name string) error {
	switch {
	case len(name) == 0:
		return ErrEmptyTopic
	case len(name) > maxLength:
		return ErrTopicTooLong
	case strings.IndexByte(name, 0) >= 0:
		return ErrNullCharacter
	case strings.ContainsAny(name, "#+"):
		return ErrWildcardInName
	}
	return nil
}

// ValidateFilter validates a topic filter as carried by SUBSCRIBE and
// UNSUBSCRIBE, including the $share/{ShareName}/{filter} form.
func ValidateFilter(filter string) error {
	switch {
	case len(filter) == 0:
		return ErrEmptyTopic
	case len(filter) > maxLength:
		return ErrTopicTooLong
	case strings.IndexByte(filter, 0) >= 0:
		return ErrNullCharacter
	}

	if strings.HasPrefix(filter, sharePrefix) {
		shareName, inner, ok := SplitShared(filter)
		if !ok || strings.ContainsAny(shareName, "#+") {
			return ErrInvalidSharedSubscription
		}
		filter = inner
	}

	rest := filter
	for {
		level, tail, more := strings.Cut(rest, string(Separator))
		if strings.IndexByte(level, MultiWildcard) >= 0 {
			// # must be alone in its level and be the last level
			if level != string(MultiWildcard) || more {
				return ErrInvalidMultiWildcard
			}
		}
		if strings.IndexByte(level, SingleWildcard) >= 0 && level != string(SingleWildcard) {
			return ErrInvalidSingleWildcard
		}
		if !more {
			return nil
		}
		rest = tail
	}
}

// Match reports whether a topic name matches a topic filter. Names starting
// with $ are not matched by a filter that starts with a wildcard.
func Match(filter, name string) bool {
	if len(filter) == 0 || len(name) == 0 {
		return false
	}
	if name[0] == SysPrefix && (filter[0] == MultiWildcard || filter[0] == SingleWildcard) {
		return false
	}

	for {
		f, fRest, fMore := strings.Cut(filter, string(Separator))
		if f == string(MultiWildcard) {
			return true
		}
		n, nRest, nMore := strings.Cut(name, string(Separator))
		if f != string(SingleWildcard) && f != n {
			return false
		}
		switch {
		case !fMore && !nMore:
			return true
		case !nMore:
			// "a/#" also matches "a"
			return fRest == string(MultiWildcard)
		case !fMore:
			return false
		}
		filter, name = fRest, nRest
	}
}

// SplitShared splits a shared subscription filter into its share name and
// the filter it applies to. ok is false when filter is not in the
// $share/{ShareName}/{filter} form.
func SplitShared(filter string) (shareName, actualFilter string, ok bool) {
	rest, found := strings.CutPrefix(filter, sharePrefix)
	if !found {
		return "", "", false
	}
	shareName, actualFilter, found = strings.Cut(rest, string(Separator))
	if !found || shareName == "" || actualFilter == "" {
		return "", "", false
	}
	return shareName, actualFilter, true
}
