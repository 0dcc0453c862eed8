package models

// ModalState is the phase of a page's chat panel.
type ModalState int

const (
	ModalClosed ModalState = iota
	ModalLoading
	ModalChat
	ModalMinimized
)

func (s ModalState) String() string {
	switch s {
	case ModalClosed:
		return "closed"
	case ModalLoading:
		return "loading"
	case ModalChat:
		return "chat"
	case ModalMinimized:
		return "minimized"
	default:
		return "unknown"
	}
}

// PickerState is the phase of one region picker activation.
type PickerState int

const (
	PickerIdle PickerState = iota
	PickerDragging
	PickerResolved
)

func (s PickerState) String() string {
	switch s {
	case PickerIdle:
		return "idle"
	case PickerDragging:
		return "dragging"
	case PickerResolved:
		return "resolved"
	default:
		return "unknown"
	}
}
