// Package types contains shared domain types used across the labelgraph platform
package types

import (
	"strings"
)

// LabelID is the stable opaque identifier of a label. Identity is stable
// across configuration reloads as long as the identifier is unchanged.
type LabelID string

// String implements fmt.Stringer for LabelID
func (id LabelID) String() string {
	return string(id)
}

// EntityID identifies an entity in the host platform's entity registry.
type EntityID string

// String implements fmt.Stringer for EntityID
func (id EntityID) String() string {
	return string(id)
}

// DeviceID identifies a device in the host platform's device registry.
type DeviceID string

// String implements fmt.Stringer for DeviceID
func (id DeviceID) String() string {
	return string(id)
}

// SubjectKind distinguishes the two kinds of label subjects.
type SubjectKind string

// Subject kind constants
const (
	SubjectEntity SubjectKind = "entity"
	SubjectDevice SubjectKind = "device"
)

// Subject is an entity or device that holds labels.
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

// EntitySubject builds a Subject for an entity.
func EntitySubject(id EntityID) Subject {
	return Subject{Kind: SubjectEntity, ID: string(id)}
}

// DeviceSubject builds a Subject for a device.
func DeviceSubject(id DeviceID) Subject {
	return Subject{Kind: SubjectDevice, ID: string(id)}
}

// String implements fmt.Stringer for Subject
func (s Subject) String() string {
	return string(s.Kind) + ":" + s.ID
}

// LabelRecord is one parsed configuration record for a label, as supplied
// by the configuration loader once per reload.
type LabelRecord struct {
	ID      LabelID   `json:"id"`
	Name    string    `json:"name"`    // Human-readable name; defaults to the id
	Parents []LabelID `json:"parents"` // Parent label identifiers (may be empty)
	Rule    string    `json:"rule"`    // Optional boolean rule expression text
	Area    bool      `json:"area"`    // Area-emulation eligible
	Aliases []string  `json:"aliases"` // Alternative names for area matching
}

// assignPrefix marks the virtual labels that represent raw direct
// assignment, distinct from the derived effective label.
const assignPrefix = "assign:"

// AddAssignID returns the virtual assign label id for a label.
func AddAssignID(id LabelID) LabelID {
	return LabelID(assignPrefix + string(id))
}

// TrimAssignID strips the assign prefix from a virtual label id.
// The second return is false if the id is not an assign label.
func TrimAssignID(id LabelID) (LabelID, bool) {
	rest, ok := strings.CutPrefix(string(id), assignPrefix)
	if !ok {
		return "", false
	}
	return LabelID(rest), true
}

// AddAssignName returns the display name of a virtual assign label.
func AddAssignName(name string) string {
	return "assign: " + name
}

// IsSpecialID reports whether a label id is reserved for internal use.
// Identifiers containing a colon (such as assign: labels) cannot take
// part in the hierarchy, rules, or areas.
func IsSpecialID(id LabelID) bool {
	return strings.ContainsRune(string(id), ':')
}

// NormalizeName canonicalizes a display name for matching: lowercased
// with whitespace collapsed, so "Living  Room" and "living room" match.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
