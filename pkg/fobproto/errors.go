package fobproto

import "errors"

// FirmwareError categorizes failures surfaced by the firmware core.
type FirmwareError struct {
	Err error

	// PossibleTemporary is true when the condition may clear without user or
	// service intervention, for example a radio backend that failed to start
	// advertising.
	PossibleTemporary bool
}

// NewError returns a FirmwareError wrapping a new error with the given
// message.
func NewError(message string, temporary bool) error {
	return &FirmwareError{Err: errors.New(message), PossibleTemporary: temporary}
}

func (e *FirmwareError) Error() string {
	return e.Err.Error()
}

func (e *FirmwareError) Unwrap() error {
	return e.Err
}

// Temporary returns true if the error may be transient.
func (e *FirmwareError) Temporary() bool {
	return e.PossibleTemporary
}

var (
	// ErrNotProvisioned indicates no shared secret has been installed. The
	// firmware refuses to start in this condition.
	ErrNotProvisioned = NewError("device has not been provisioned with a shared secret", false)
	// ErrEntropyFailure indicates the true-entropy source failed while
	// generating a nonce. Authentication is halted rather than falling back
	// to a weaker source.
	ErrEntropyFailure = NewError("entropy source failure", false)
	// ErrRadioUnavailable indicates the radio backend could not be started.
	ErrRadioUnavailable = NewError("radio backend unavailable", true)
	// ErrActuatorFault indicates the door actuator reported a failure. The
	// request is not retried.
	ErrActuatorFault = NewError("actuator reported failure", false)
	// ErrBadWriteLength indicates a GATT write whose length does not match
	// the characteristic's fixed size.
	ErrBadWriteLength = NewError("write length does not match characteristic size", false)
)

// Temporary returns true if err is a FirmwareError marked transient.
func Temporary(err error) bool {
	var fe *FirmwareError
	if errors.As(err, &fe) {
		return fe.Temporary()
	}
	return false
}
