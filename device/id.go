package device

// BusType identifies the transport a driver instance is attached to.
type BusType uint8

const (
	BusUnknown BusType = iota
	BusI2C
	BusSPI
	BusUAVCAN
	BusVirt
)

// ID is a packed 32-bit device identifier: bus_type(3) | bus_index(5) | address(8) | devtype(8) |
// reserved(8), little-endian in-word. Equality and ordering are by the packed value, so a plain
// uint32 comparison (or map key) is all any caller ever needs.
type ID uint32

const (
	busTypeBits  = 3
	busIndexBits = 5
	addressBits  = 8
	devtypeBits  = 8

	busTypeShift  = 0
	busIndexShift = busTypeShift + busTypeBits
	addressShift  = busIndexShift + busIndexBits
	devtypeShift  = addressShift + addressBits

	busTypeMask  = (1 << busTypeBits) - 1
	busIndexMask = (1 << busIndexBits) - 1
	addressMask  = (1 << addressBits) - 1
	devtypeMask  = (1 << devtypeBits) - 1
)

// PackID builds an ID from its constituent fields, truncating each to its bit width.
func PackID(busType BusType, busIndex, address, devtype uint8) ID {
	return ID(uint32(busType&busTypeMask)<<busTypeShift |
		uint32(busIndex&busIndexMask)<<busIndexShift |
		uint32(address&addressMask)<<addressShift |
		uint32(devtype&devtypeMask)<<devtypeShift)
}

// BusType returns the packed bus type field.
func (id ID) BusType() BusType { return BusType(uint32(id) >> busTypeShift & busTypeMask) }

// BusIndex returns the packed bus index field.
func (id ID) BusIndex() uint8 { return uint8(uint32(id) >> busIndexShift & busIndexMask) }

// Address returns the packed address field.
func (id ID) Address() uint8 { return uint8(uint32(id) >> addressShift & addressMask) }

// Devtype returns the packed device-type field.
func (id ID) Devtype() uint8 { return uint8(uint32(id) >> devtypeShift & devtypeMask) }
