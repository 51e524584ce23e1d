// Package fsm implements the firmware state machine: the single owner of
// power state and session state, and the only component permitted to request
// the door-actuator action. All transitions run on one goroutine; every
// error path resolves toward Sleep with the radio stopped and session
// secrets zeroized.
package fsm

import (
	"context"
	"fmt"
	"time"

	"github.com/nexlock/keyfob-firmware/internal/auth"
	"github.com/nexlock/keyfob-firmware/internal/clock"
	"github.com/nexlock/keyfob-firmware/internal/event"
	"github.com/nexlock/keyfob-firmware/internal/log"
	"github.com/nexlock/keyfob-firmware/pkg/actuator"
	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

// PowerState is the device's mutually exclusive operating mode.
type PowerState int

const (
	Sleep PowerState = iota
	WakeInit
	Advertising
	GattSession
	Unlocked
)

func (s PowerState) String() string {
	switch s {
	case Sleep:
		return "Sleep"
	case WakeInit:
		return "WakeInit"
	case Advertising:
		return "Advertising"
	case GattSession:
		return "GattSession"
	case Unlocked:
		return "Unlocked"
	}
	return fmt.Sprintf("PowerState(%d)", int(s))
}

// Policy is the process-wide timing and lockout configuration, read-only
// after initialization.
type Policy struct {
	MaxFailAttempts      uint8
	LockoutDuration      time.Duration
	AuthWindow           time.Duration
	AdvWindow            time.Duration
	ConnIdleTimeout      time.Duration
	UnlockPulse          time.Duration
	DisconnectOnAuthFail bool

	// RequireWakeConfirmation and WakeConfirmWindow configure the proximity
	// wake detector. The machine itself does not read them; the wiring layer
	// passes them through when constructing the detector.
	RequireWakeConfirmation bool
	WakeConfirmWindow       time.Duration
}

// DefaultPolicy returns the shipping defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxFailAttempts:   3,
		LockoutDuration:   30 * time.Second,
		AuthWindow:        5 * time.Second,
		AdvWindow:         10 * time.Second,
		ConnIdleTimeout:   10 * time.Second,
		UnlockPulse:       2 * time.Second,
		WakeConfirmWindow: 500 * time.Millisecond,
	}
}

// session is reset on every new connection and zeroized on every entry to
// Sleep. authenticated implies authAt was recorded at the moment the nonce
// match succeeded; failCount resets only on disconnect or successful
// authentication.
type session struct {
	connected     bool
	authenticated bool
	authAt        clock.Millis
	nonce         *auth.Nonce
	failCount     uint8
}

func (s *session) clear() {
	if s.nonce != nil {
		auth.Zeroize(s.nonce[:])
	}
	*s = session{}
}

// Radio is the state machine's view of the radio session manager.
type Radio interface {
	StartAdvertising() error
	StopAdvertising()
	Disconnect()
	NotifyChallenge(nonce [fobproto.ChallengeLength]byte) error
	NotifyStatus(code fobproto.Status)
}

// WakeSource is the state machine's view of the proximity wake subsystem.
type WakeSource interface {
	PollWake() bool
	Suspend()
	Resume()
}

// GuardFunc is an additional predicate evaluated alongside the unlock
// authorization check. The relay-mitigation hook attaches here; the default
// (nil) always passes.
type GuardFunc func() bool

const defaultTickInterval = 10 * time.Millisecond

// Config wires a Machine's collaborators.
type Config struct {
	Clock    clock.Clock
	Queue    *event.Queue
	Policy   Policy
	Auth     *auth.Engine
	Radio    Radio
	Wake     WakeSource // optional; nil when wake events are posted directly
	Actuator actuator.Actuator

	// UnlockGuard, when set, must also pass for an unlock to be authorized.
	UnlockGuard GuardFunc

	// TickInterval is the loop's timer/wake polling period.
	TickInterval time.Duration
}

// Machine is the firmware state machine. It is not goroutine-safe: every
// method runs on the loop goroutine (or the test's goroutine). Asynchronous
// sources interact with it only through the event queue.
type Machine struct {
	clock  clock.Clock
	timers *clock.TimerSet
	queue  *event.Queue
	policy Policy
	auth   *auth.Engine
	radio  Radio
	wake   WakeSource
	act    actuator.Actuator
	guard  GuardFunc
	tick   time.Duration

	state        PowerState
	session      session
	lockoutUntil clock.Millis
	inLockout    bool
	faulted      bool // entropy source failed; authentication refused until reboot

	armedGens map[clock.TimerID]clock.Gen
}

func New(cfg Config) (*Machine, error) {
	if cfg.Clock == nil || cfg.Queue == nil || cfg.Auth == nil || cfg.Radio == nil || cfg.Actuator == nil {
		return nil, fmt.Errorf("fsm: Clock, Queue, Auth, Radio, and Actuator are required")
	}
	if cfg.Policy.MaxFailAttempts == 0 {
		return nil, fmt.Errorf("fsm: MaxFailAttempts must be at least 1")
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	return &Machine{
		clock:     cfg.Clock,
		timers:    clock.NewTimerSet(cfg.Clock),
		queue:     cfg.Queue,
		policy:    cfg.Policy,
		auth:      cfg.Auth,
		radio:     cfg.Radio,
		wake:      cfg.Wake,
		act:       cfg.Actuator,
		guard:     cfg.UnlockGuard,
		tick:      tick,
		state:     Sleep,
		armedGens: make(map[clock.TimerID]clock.Gen),
	}, nil
}

// State returns the current power state.
func (m *Machine) State() PowerState {
	return m.state
}

// Authenticated reports whether the current session holds a live
// authentication.
func (m *Machine) Authenticated() bool {
	return m.session.authenticated
}

// LockedOut reports whether the post-failure cooldown window is active.
func (m *Machine) LockedOut() bool {
	if !m.inLockout {
		return false
	}
	if m.clock.Now() >= m.lockoutUntil {
		m.inLockout = false
		return false
	}
	return true
}

// HandleEvent applies one event to the transition function. Unmatched
// (state, event) pairs are ignored, except disconnects and timer expiries,
// which always resolve toward Sleep.
func (m *Machine) HandleEvent(ev event.Event) {
	switch ev.Kind {
	case event.KindProximity:
		m.onProximity()
	case event.KindTimerExpired:
		m.onTimerExpired(ev.Timer, ev.TimerGen)
	case event.KindRadioConnected:
		m.onConnected()
	case event.KindRadioDisconnected:
		m.onDisconnected()
	case event.KindRadioWrite:
		m.onWrite(ev.Characteristic, ev.Data)
	case event.KindActuatorResult:
		m.onActuatorResult(ev.OK)
	default:
		log.Warning("Ignoring unrecognized event %s in %s", ev.Kind, m.state)
	}
}

func (m *Machine) onProximity() {
	if m.state != Sleep {
		return
	}
	if m.faulted {
		log.Warning("Ignoring wake: device is faulted")
		return
	}
	if m.LockedOut() {
		log.Info("Ignoring wake: lockout active for another %dms", int64(m.lockoutUntil-m.clock.Now()))
		return
	}

	// WakeInit: bring up clocks and radio, then advertise immediately.
	m.setState(WakeInit)
	if m.wake != nil {
		m.wake.Suspend()
	}
	if err := m.radio.StartAdvertising(); err != nil {
		log.Error("Failed to start advertising: %s", err)
		m.toSleep()
		return
	}
	m.arm(clock.TimerAdvertising, m.policy.AdvWindow)
	m.setState(Advertising)
}

func (m *Machine) onTimerExpired(id clock.TimerID, gen clock.Gen) {
	// A timer disarmed or re-armed after this expiry was computed carries a
	// stale generation and must not fire into the wrong state.
	if m.armedGens[id] != gen {
		log.Debug("Discarding stale %s timer expiry", id)
		return
	}
	delete(m.armedGens, id)

	switch {
	case id == clock.TimerAdvertising && m.state == Advertising:
		log.Info("No connection within advertising window")
		m.toSleep()
	case id == clock.TimerIdle && m.state == GattSession:
		log.Info("Connection idle timeout")
		m.radio.Disconnect()
		m.toSleep()
	case id == clock.TimerUnlockPulse && m.state == Unlocked:
		log.Error("Actuator did not report within pulse window")
		m.radio.NotifyStatus(fobproto.StatusError)
		m.radio.Disconnect()
		m.toSleep()
	default:
		// Timer expiry always resolves toward Sleep, never toward Unlocked.
		if m.state != Sleep {
			log.Warning("Timer %s expired in unexpected state %s", id, m.state)
			m.radio.Disconnect()
			m.toSleep()
		}
	}
}

func (m *Machine) onConnected() {
	if m.state != Advertising {
		// A connection the machine did not solicit is dropped.
		log.Warning("Dropping connection in state %s", m.state)
		m.radio.Disconnect()
		return
	}
	if m.LockedOut() {
		log.Warning("Dropping connection: lockout active")
		m.radio.Disconnect()
		m.toSleep()
		return
	}

	m.disarm(clock.TimerAdvertising)
	m.radio.StopAdvertising()
	m.session.clear()
	m.session.connected = true
	m.setState(GattSession)
	m.arm(clock.TimerIdle, m.policy.ConnIdleTimeout)
	m.issueChallenge()
}

func (m *Machine) onDisconnected() {
	if m.state == Sleep {
		return
	}
	// Disconnect always wins and forces the transition toward Sleep.
	log.Info("Disconnected in %s", m.state)
	m.toSleep()
}

func (m *Machine) onWrite(c fobproto.Characteristic, data []byte) {
	if m.state != GattSession {
		log.Warning("Ignoring %s write in %s", c, m.state)
		return
	}
	switch c {
	case fobproto.CharResponse:
		m.onResponse(data)
	case fobproto.CharControl:
		m.onControl(data)
	default:
		// Length and writability were validated at the radio layer; anything
		// else reaching this point is a radio-layer bug.
		log.Error("Unexpected write to %s", c)
	}
}

func (m *Machine) onResponse(data []byte) {
	m.arm(clock.TimerIdle, m.policy.ConnIdleTimeout)
	if m.session.nonce == nil {
		log.Warning("Response write without an outstanding challenge")
		m.radio.NotifyStatus(fobproto.StatusError)
		return
	}

	// The nonce is consumed by this attempt regardless of outcome; a fresh
	// nonce is required for any subsequent attempt, so a captured response
	// can never be replayed against a later challenge.
	nonce := *m.session.nonce
	auth.Zeroize(m.session.nonce[:])
	m.session.nonce = nil

	if m.auth.Verify(nonce, data) {
		m.session.authenticated = true
		m.session.authAt = m.clock.Now()
		m.session.failCount = 0
		log.Info("Authentication succeeded")
		m.radio.NotifyStatus(fobproto.StatusAuthOK)
		return
	}

	m.session.failCount++
	log.Warning("Authentication failed (%d/%d)", m.session.failCount, m.policy.MaxFailAttempts)
	m.radio.NotifyStatus(fobproto.StatusAuthFail)

	if m.session.failCount >= m.policy.MaxFailAttempts {
		m.enterLockout()
		return
	}
	if m.policy.DisconnectOnAuthFail {
		m.radio.Disconnect()
		m.toSleep()
		return
	}
	// Give the client a fresh challenge for its next attempt.
	m.issueChallenge()
}

func (m *Machine) onControl(data []byte) {
	m.arm(clock.TimerIdle, m.policy.ConnIdleTimeout)
	if data[0] != fobproto.ControlUnlock {
		log.Warning("Unrecognized control opcode 0x%02x", data[0])
		m.radio.NotifyStatus(fobproto.StatusError)
		return
	}
	if !m.unlockAuthorized() {
		log.Warning("Unlock request denied")
		m.radio.NotifyStatus(fobproto.StatusDenied)
		return
	}

	// The authorization is single-use: consume it before actuating so a
	// second Control write in the same window is denied.
	m.session.authenticated = false

	m.disarm(clock.TimerIdle)
	m.arm(clock.TimerUnlockPulse, m.policy.UnlockPulse)
	m.setState(Unlocked)
	m.dispatchActuator()
}

// unlockAuthorized evaluates the unlock guard: a live authentication inside
// the auth window, plus the optional relay-mitigation hook.
func (m *Machine) unlockAuthorized() bool {
	if !m.session.authenticated {
		return false
	}
	if m.clock.Now()-m.session.authAt >= clock.Millis(m.policy.AuthWindow/time.Millisecond) {
		return false
	}
	if m.guard != nil && !m.guard() {
		return false
	}
	return true
}

func (m *Machine) onActuatorResult(ok bool) {
	if m.state != Unlocked {
		log.Warning("Ignoring actuator result in %s", m.state)
		return
	}
	m.disarm(clock.TimerUnlockPulse)
	if ok {
		log.Info("Actuator acknowledged unlock")
		m.radio.NotifyStatus(fobproto.StatusUnlocked)
	} else {
		// Terminal for the session: no automatic retry.
		log.Error("Actuator reported failure")
		m.radio.NotifyStatus(fobproto.StatusError)
	}
	m.radio.Disconnect()
	m.toSleep()
}

// dispatchActuator issues the unlock asynchronously; the main loop never
// blocks on hardware. Completion arrives as an ActuatorResult event.
func (m *Machine) dispatchActuator() {
	pulse := m.policy.UnlockPulse
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pulse)
		defer cancel()
		err := m.act.RequestUnlock(ctx)
		if err != nil {
			log.Error("Actuator error: %s", err)
		}
		m.queue.Post(event.ActuatorResult(err == nil))
	}()
}

// issueChallenge draws a fresh nonce and notifies it on the Challenge
// characteristic. An entropy failure is unrecoverable: advertising halts and
// authentication is refused rather than falling back to a weaker source.
func (m *Machine) issueChallenge() {
	nonce, err := m.auth.IssueNonce()
	if err != nil {
		log.Error("Halting authentication: %s", err)
		m.faulted = true
		m.radio.Disconnect()
		m.toSleep()
		return
	}
	m.session.nonce = &nonce
	if err := m.radio.NotifyChallenge(nonce); err != nil {
		log.Warning("Failed to notify challenge: %s", err)
	}
}

func (m *Machine) enterLockout() {
	log.Warning("Max failed attempts reached; entering lockout for %s", m.policy.LockoutDuration)
	m.inLockout = true
	m.lockoutUntil = m.clock.Now() + clock.Millis(m.policy.LockoutDuration/time.Millisecond)
	m.radio.Disconnect()
	m.toSleep()
}

// toSleep is the fail-safe anchor: every path into Sleep stops the radio,
// disarms all timers, zeroizes session secrets, and resumes wake sensing.
func (m *Machine) toSleep() {
	m.timers.DisarmAll()
	for id := range m.armedGens {
		delete(m.armedGens, id)
	}
	m.radio.StopAdvertising()
	m.session.clear()
	if m.wake != nil {
		m.wake.Resume()
	}
	m.setState(Sleep)
}

func (m *Machine) arm(id clock.TimerID, d time.Duration) {
	m.armedGens[id] = m.timers.Arm(id, d)
}

func (m *Machine) disarm(id clock.TimerID) {
	m.timers.Disarm(id)
	delete(m.armedGens, id)
}

func (m *Machine) setState(s PowerState) {
	if m.state != s {
		log.Debug("State %s -> %s", m.state, s)
		m.state = s
	}
}
