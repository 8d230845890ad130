package protocol

import (
	"fmt"
	"sort"
)

// Family selects which opcode space a command lives in. Extended
// families share numeric opcodes with each other and with Basic, so the
// family always travels with the opcode and is chosen by the caller.
type Family uint8

const (
	FamilyBasic Family = iota
	FamilyFile
	FamilyController
	FamilyFactory
)

var familyNames = [...]string{"basic", "file", "controller", "factory"}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// Prefix returns the command byte that precedes the opcode on the wire.
// Basic commands have no prefix.
func (f Family) Prefix() (byte, bool) {
	switch f {
	case FamilyFile, FamilyFactory:
		return PrefixUserCDC, true
	case FamilyController:
		return PrefixConCDC, true
	}
	return 0, false
}

// commandSize is the number of command bytes (prefix + opcode)
func (f Family) commandSize() int {
	if _, ok := f.Prefix(); ok {
		return 2
	}
	return 1
}

// ReplyLength is either a fixed payload size or LengthPrefixed, meaning
// the reply carries its own varint length field
type ReplyLength struct {
	size     uint16
	prefixed bool
}

// LengthPrefixed marks replies whose length is read from the frame
func LengthPrefixed() ReplyLength {
	return ReplyLength{prefixed: true}
}

// Fixed returns a fixed reply size. Fixed(0) means the command has no
// reply payload.
func Fixed(n uint16) ReplyLength {
	return ReplyLength{size: n}
}

// ReplyLengthFromWire maps the table sentinel 0xFFFF to LengthPrefixed
func ReplyLengthFromWire(v uint16) ReplyLength {
	if v == unboundedReply {
		return LengthPrefixed()
	}
	return Fixed(v)
}

// Size returns the fixed size; ok is false for LengthPrefixed
func (r ReplyLength) Size() (n uint16, ok bool) {
	return r.size, !r.prefixed
}

// IsPrefixed reports whether the length comes from the frame itself
func (r ReplyLength) IsPrefixed() bool {
	return r.prefixed
}

// Wire returns the table encoding (0xFFFF for LengthPrefixed)
func (r ReplyLength) Wire() uint16 {
	if r.prefixed {
		return unboundedReply
	}
	return r.size
}

func (r ReplyLength) String() string {
	if r.prefixed {
		return "prefixed"
	}
	return fmt.Sprintf("fixed(%d)", r.size)
}

// CommandSpec describes one CDC2 command
type CommandSpec struct {
	Name   string
	Family Family
	Opcode uint8
	Reply  ReplyLength
}

func (c CommandSpec) String() string {
	return fmt.Sprintf("%s(%s 0x%02X)", c.Name, c.Family, c.Opcode)
}

// Registry is an immutable opcode table for one family
type Registry struct {
	family   Family
	byName   map[string]CommandSpec
	byOpcode map[uint8]CommandSpec
}

func newRegistry(family Family, table []CommandSpec) *Registry {
	r := &Registry{
		family:   family,
		byName:   make(map[string]CommandSpec, len(table)),
		byOpcode: make(map[uint8]CommandSpec, len(table)),
	}
	for _, c := range table {
		c.Family = family
		if _, dup := r.byOpcode[c.Opcode]; dup {
			panic(fmt.Sprintf("cdc2: duplicate %s opcode 0x%02X", family, c.Opcode))
		}
		r.byName[c.Name] = c
		r.byOpcode[c.Opcode] = c
	}
	return r
}

// Family returns the opcode space this registry covers
func (r *Registry) Family() Family {
	return r.family
}

// Lookup finds a command by symbolic name
func (r *Registry) Lookup(name string) (CommandSpec, error) {
	c, ok := r.byName[name]
	if !ok {
		return CommandSpec{}, fmt.Errorf("%w: %s has no command %q", ErrUnknownCommand, r.family, name)
	}
	return c, nil
}

// ByOpcode finds a command by opcode
func (r *Registry) ByOpcode(op uint8) (CommandSpec, error) {
	c, ok := r.byOpcode[op]
	if !ok {
		return CommandSpec{}, fmt.Errorf("%w: %s opcode 0x%02X", ErrUnknownCommand, r.family, op)
	}
	return c, nil
}

// Commands returns the table sorted by opcode
func (r *Registry) Commands() []CommandSpec {
	out := make([]CommandSpec, 0, len(r.byOpcode))
	for _, c := range r.byOpcode {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Opcode < out[j].Opcode })
	return out
}

var (
	basicCommands = newRegistry(FamilyBasic, []CommandSpec{
		{Name: "ACK", Opcode: AckOpcode, Reply: Fixed(1)},
		{Name: "QUERY1", Opcode: 0x21, Reply: Fixed(10)},
		{Name: "EEPROM_ERASE", Opcode: 0x31, Reply: Fixed(0)},
		{Name: "BRAIN_NAME_GET", Opcode: 0x44, Reply: LengthPrefixed()},
		{Name: "USER_CDC", Opcode: PrefixUserCDC, Reply: LengthPrefixed()},
		{Name: "CON_CDC", Opcode: PrefixConCDC, Reply: LengthPrefixed()},
		{Name: "USER_ENTER", Opcode: 0x60, Reply: Fixed(0)},
		{Name: "USER_CATALOG", Opcode: 0x61, Reply: Fixed(0)},
		{Name: "FLASH_ERASE", Opcode: 0x63, Reply: Fixed(0)},
		{Name: "FLASH_WRITE", Opcode: 0x64, Reply: Fixed(0)},
		{Name: "FLASH_READ", Opcode: 0x65, Reply: LengthPrefixed()},
		{Name: "USER_EXIT", Opcode: 0x66, Reply: Fixed(0)},
		{Name: "USER_PLAY", Opcode: 0x67, Reply: Fixed(0)},
		{Name: "USER_STOP", Opcode: 0x68, Reply: Fixed(0)},
		{Name: "COMPONENT_GET", Opcode: 0x69, Reply: Fixed(0)},
		{Name: "USER_SLOT_GET", Opcode: 0x78, Reply: Fixed(0)},
		{Name: "USER_SLOT_SET", Opcode: 0x79, Reply: Fixed(0)},
		{Name: "SYSTEM_VERSION", Opcode: 0xA4, Reply: Fixed(8)},
	})

	fileCommands = newRegistry(FamilyFile, []CommandSpec{
		{Name: "FILE_CTRL", Opcode: 0x10, Reply: Fixed(1)},
		{Name: "FILE_INIT", Opcode: 0x11, Reply: Fixed(11)},
		{Name: "FILE_EXIT", Opcode: 0x12, Reply: Fixed(1)},
		{Name: "FILE_WRITE", Opcode: 0x13, Reply: Fixed(1)},
		{Name: "FILE_READ", Opcode: 0x14, Reply: LengthPrefixed()},
		{Name: "FILE_LINK", Opcode: 0x15, Reply: Fixed(1)},
		{Name: "FILE_DIR", Opcode: 0x16, Reply: Fixed(3)},
		{Name: "FILE_DIR_ENTRY", Opcode: 0x17, Reply: LengthPrefixed()},
		{Name: "FILE_LOAD", Opcode: 0x18, Reply: Fixed(1)},
		{Name: "FILE_GET_INFO", Opcode: 0x19, Reply: LengthPrefixed()},
		{Name: "FILE_SET_INFO", Opcode: 0x1A, Reply: Fixed(1)},
		{Name: "FILE_ERASE", Opcode: 0x1B, Reply: Fixed(1)},
		{Name: "FILE_USER_STAT", Opcode: 0x1C, Reply: Fixed(3)},
		{Name: "FILE_VISION_DEFAULT", Opcode: 0x1D, Reply: Fixed(1)},
		{Name: "FILE_CLEANUP", Opcode: 0x1E, Reply: Fixed(3)},
		{Name: "FILE_FORMAT", Opcode: 0x1F, Reply: Fixed(1)},
		{Name: "SYS_FLAGS", Opcode: 0x20, Reply: Fixed(5)},
		{Name: "DEV_STATUS", Opcode: 0x21, Reply: LengthPrefixed()},
		{Name: "SYS_STATUS", Opcode: 0x22, Reply: LengthPrefixed()},
		{Name: "FDT_STATUS", Opcode: 0x23, Reply: LengthPrefixed()},
		{Name: "LOG_STATUS", Opcode: 0x24, Reply: Fixed(17)},
		{Name: "LOG_READ", Opcode: 0x25, Reply: LengthPrefixed()},
		{Name: "RADIO_STATUS", Opcode: 0x26, Reply: LengthPrefixed()},
		{Name: "USER_READ", Opcode: 0x27, Reply: LengthPrefixed()},
		{Name: "SYS_SCREEN_CAP", Opcode: 0x28, Reply: Fixed(1)},
		{Name: "SYS_USER_PROG", Opcode: 0x29, Reply: Fixed(1)},
		{Name: "SYS_DASH_TOUCH", Opcode: 0x2A, Reply: Fixed(1)},
		{Name: "SYS_DASH_SEL", Opcode: 0x2B, Reply: Fixed(1)},
		{Name: "SYS_DASH_EZ", Opcode: 0x2C, Reply: Fixed(1)},
		{Name: "SYS_DASH_DIS", Opcode: 0x2D, Reply: Fixed(1)},
		{Name: "SYS_KV_LOAD", Opcode: 0x2E, Reply: LengthPrefixed()},
		{Name: "SYS_KV_SAVE", Opcode: 0x2F, Reply: Fixed(1)},
		{Name: "VISION_OBJECTS", Opcode: 0x6C, Reply: LengthPrefixed()},
	})

	controllerCommands = newRegistry(FamilyController, []CommandSpec{
		{Name: "CON_FLASH_ERASE", Opcode: 0x31, Reply: Fixed(1)},
		{Name: "CON_FLASH_WRITE", Opcode: 0x32, Reply: Fixed(1)},
		{Name: "CON_FLASH_VALIDATE", Opcode: 0x33, Reply: Fixed(1)},
		{Name: "CON_VER_FLASH", Opcode: 0x39, Reply: Fixed(1)},
		{Name: "CON_VERSIONS", Opcode: 0x3A, Reply: LengthPrefixed()},
		{Name: "CON_RADIO_FORCE", Opcode: 0x3F, Reply: Fixed(1)},
		{Name: "CON_RADIO_MODE", Opcode: 0x41, Reply: Fixed(1)},
		{Name: "CON_RADIO_STATUS", Opcode: 0x42, Reply: LengthPrefixed()},
		{Name: "CON_COMP_CTRL", Opcode: 0xC1, Reply: Fixed(1)},
	})

	factoryCommands = newRegistry(FamilyFactory, []CommandSpec{
		{Name: "FACTORY_STATUS", Opcode: 0xF1, Reply: Fixed(3)},
		{Name: "FACTORY_RESET", Opcode: 0xF2, Reply: Fixed(1)},
		{Name: "FACTORY_PING", Opcode: 0xF4, Reply: Fixed(1)},
		{Name: "FACTORY_PONG", Opcode: 0xF5, Reply: LengthPrefixed()},
		{Name: "FACTORY_SPECIAL", Opcode: 0xFE, Reply: Fixed(1)},
		{Name: "FACTORY_EBL", Opcode: 0xFF, Reply: Fixed(1)},
	})

	registries = [...]*Registry{basicCommands, fileCommands, controllerCommands, factoryCommands}
)

// RegistryFor returns the table for family, or nil for an unknown family
func RegistryFor(f Family) *Registry {
	if int(f) < len(registries) {
		return registries[f]
	}
	return nil
}

// Lookup finds a command by name across all families. Names are unique
// across the whole protocol even though opcodes are not.
func Lookup(name string) (CommandSpec, error) {
	for _, r := range registries {
		if c, ok := r.byName[name]; ok {
			return c, nil
		}
	}
	return CommandSpec{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}
