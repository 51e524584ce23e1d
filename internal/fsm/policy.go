package fsm

import (
	"fmt"
	"strconv"
	"time"
)

// PolicyFields lists the field names accepted by ApplyPolicyField, matching
// the fobd flag names so provisioned overrides and command-line flags share
// one vocabulary.
var PolicyFields = []string{
	"max-fail-attempts",
	"lockout",
	"auth-window",
	"adv-window",
	"idle-timeout",
	"unlock-pulse",
	"disconnect-on-auth-fail",
	"require-wake-confirmation",
	"wake-confirm-window",
}

// ApplyPolicyField parses value and sets the named field on p. Durations use
// Go duration syntax ("30s", "500ms").
func ApplyPolicyField(p *Policy, field, value string) error {
	switch field {
	case "max-fail-attempts":
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil || n == 0 {
			return fmt.Errorf("%s must be an integer between 1 and 255", field)
		}
		p.MaxFailAttempts = uint8(n)
	case "lockout":
		return applyDuration(&p.LockoutDuration, field, value)
	case "auth-window":
		return applyDuration(&p.AuthWindow, field, value)
	case "adv-window":
		return applyDuration(&p.AdvWindow, field, value)
	case "idle-timeout":
		return applyDuration(&p.ConnIdleTimeout, field, value)
	case "unlock-pulse":
		return applyDuration(&p.UnlockPulse, field, value)
	case "wake-confirm-window":
		return applyDuration(&p.WakeConfirmWindow, field, value)
	case "disconnect-on-auth-fail":
		return applyBool(&p.DisconnectOnAuthFail, field, value)
	case "require-wake-confirmation":
		return applyBool(&p.RequireWakeConfirmation, field, value)
	default:
		return fmt.Errorf("unknown policy field %q", field)
	}
	return nil
}

func applyDuration(dst *time.Duration, field, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fmt.Errorf("%s must be a positive duration (e.g. \"30s\")", field)
	}
	*dst = d
	return nil
}

func applyBool(dst *bool, field, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be true or false", field)
	}
	*dst = b
	return nil
}
