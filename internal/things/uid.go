package things

import (
	"fmt"
	"regexp"
	"strings"
)

// segmentRE matches a single UID segment.
var segmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ThingUID identifies a thing as colon-separated segments, at least
// binding:type:id. Bridged things carry extra segments between the type
// and the id (binding:type:bridgeID:id).
type ThingUID string

// ParseThingUID validates s as a thing UID.
func ParseThingUID(s string) (ThingUID, error) {
	segs := strings.Split(s, ":")
	if len(segs) < 3 {
		return "", fmt.Errorf("%w: %q needs at least binding:type:id", ErrInvalidUID, s)
	}
	for _, seg := range segs {
		if !segmentRE.MatchString(seg) {
			return "", fmt.Errorf("%w: %q has bad segment %q", ErrInvalidUID, s, seg)
		}
	}
	return ThingUID(s), nil
}

// String returns the UID text.
func (u ThingUID) String() string { return string(u) }

// Segments returns the colon-separated parts.
func (u ThingUID) Segments() []string { return strings.Split(string(u), ":") }

// Binding returns the first segment.
func (u ThingUID) Binding() string { return u.Segments()[0] }

// TypeID returns the second segment.
func (u ThingUID) TypeID() string { return u.Segments()[1] }

// ID returns the last segment.
func (u ThingUID) ID() string {
	segs := u.Segments()
	return segs[len(segs)-1]
}

// ChannelUID identifies a channel within a thing: the thing UID plus a
// trailing channel id segment.
type ChannelUID string

// ParseChannelUID validates s as a channel UID.
func ParseChannelUID(s string) (ChannelUID, error) {
	segs := strings.Split(s, ":")
	if len(segs) < 4 {
		return "", fmt.Errorf("%w: %q needs at least binding:type:id:channel", ErrInvalidUID, s)
	}
	for _, seg := range segs {
		if !segmentRE.MatchString(seg) {
			return "", fmt.Errorf("%w: %q has bad segment %q", ErrInvalidUID, s, seg)
		}
	}
	return ChannelUID(s), nil
}

// NewChannelUID builds the UID of channelID on thing.
func NewChannelUID(thing ThingUID, channelID string) ChannelUID {
	return ChannelUID(string(thing) + ":" + channelID)
}

// String returns the UID text.
func (u ChannelUID) String() string { return string(u) }

// Thing returns the owning thing's UID.
func (u ChannelUID) Thing() ThingUID {
	s := string(u)
	return ThingUID(s[:strings.LastIndex(s, ":")])
}

// ChannelID returns the trailing channel id segment.
func (u ChannelUID) ChannelID() string {
	s := string(u)
	return s[strings.LastIndex(s, ":")+1:]
}
