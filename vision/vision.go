// Package vision decodes object records reported by the V5 vision and
// AI vision sensors
package vision

import (
	"fmt"
	"strings"
)

// ObjectType is the top two bits of a record's leading byte
type ObjectType uint8

const (
	TypeColor ObjectType = iota
	TypeCode
	TypeAIClassified
	TypeAprilTag
)

var typeNames = [...]string{"color", "code", "ai", "apriltag"}

func (t ObjectType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Point is a position in sensor pixel coordinates
type Point struct {
	X float64
	Y float64
}

// AprilTag holds the geometry only tags carry
type AprilTag struct {
	// Quad is the corner set in decode order
	Quad [4]Point
	// Quad9 is Quad scaled 9/5 outward from the centre
	Quad9 [4]Point
	// Angle in degrees, one decimal place
	Angle float64
}

// Object is one decoded sensor record
type Object struct {
	ID      uint8
	Type    ObjectType
	Name    string
	OriginX int
	OriginY int
	Width   int
	Height  int
	CenterX float64
	CenterY float64

	// Score is the detection confidence; zero for tags
	Score uint8

	// Tag is set for TypeAprilTag only
	Tag *AprilTag

	// ByteLength is the number of buffer bytes this record occupied
	ByteLength int
}

// Vocabulary selects the class names of AI-classified objects
type Vocabulary uint8

const (
	GameElements Vocabulary = iota
	ClassroomElements
)

func (v Vocabulary) String() string {
	if v == ClassroomElements {
		return "classroom"
	}
	return "game"
}

// VocabularyByName resolves a configured vocabulary
func VocabularyByName(name string) (Vocabulary, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "game", "game-elements":
		return GameElements, nil
	case "classroom", "classroom-elements":
		return ClassroomElements, nil
	}
	return 0, fmt.Errorf("vision: unknown vocabulary %q", name)
}

var vocabularies = [...]map[uint8]string{
	GameElements: {
		0: "Beam",
		1: "Blue Pin",
		2: "Red Pin",
		3: "Orange Pin",
	},
	ClassroomElements: {
		0: "Blue Ball",
		1: "Green Ball",
		2: "Red Ball",
		3: "Blue Ring",
		4: "Green Ring",
		5: "Red Ring",
		6: "Blue Cube",
		7: "Green Cube",
		8: "Red Cube",
	},
}
