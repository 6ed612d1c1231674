package binding

import "errors"

var (
	// ErrSlotCount is returned when a set does not bind exactly one resource per layout slot.
	ErrSlotCount = errors.New("binding: resource count does not match layout slot count")

	// ErrSlotKind is returned when a resource kind differs from its slot kind.
	ErrSlotKind = errors.New("binding: resource kind does not match slot kind")

	// ErrNilResource is returned when a slot is bound to a nil handle or the layout is nil.
	ErrNilResource = errors.New("binding: nil resource")

	// ErrResourceUsage is returned when a resource lacks the usage flag its slot requires.
	ErrResourceUsage = errors.New("binding: resource usage does not allow slot kind")

	// ErrBufferTooSmall is returned when a buffer is smaller than the slot's minimum binding size.
	ErrBufferTooSmall = errors.New("binding: buffer smaller than slot minimum binding size")

	// ErrSampleType is returned when a texture's format does not produce the slot's sample type.
	ErrSampleType = errors.New("binding: texture sample type does not match slot")

	// ErrLayoutVersion is returned when a set was built against another version of the expected layout.
	ErrLayoutVersion = errors.New("binding: layout version mismatch")

	// ErrLayoutMismatch is returned when a set was built against a different layout.
	ErrLayoutMismatch = errors.New("binding: layout mismatch")

	// ErrInvalidLayout is returned when a layout definition is malformed.
	ErrInvalidLayout = errors.New("binding: invalid layout")
)
