package fsm_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/nexlock/keyfob-firmware/internal/auth"
	"github.com/nexlock/keyfob-firmware/internal/clock"
	"github.com/nexlock/keyfob-firmware/internal/event"
	"github.com/nexlock/keyfob-firmware/internal/fsm"
	"github.com/nexlock/keyfob-firmware/internal/radio"
	"github.com/nexlock/keyfob-firmware/internal/radio/radiosim"
	"github.com/nexlock/keyfob-firmware/internal/wake"
	"github.com/nexlock/keyfob-firmware/mocks"
	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

// sessionKey is the shared secret both sides of the scenario compute with.
var sessionKey = []byte("scenario session key")

func keyedHash(nonce auth.Nonce) auth.Response {
	mac := hmac.New(sha256.New, sessionKey)
	mac.Write(nonce[:])
	var response auth.Response
	copy(response[:], mac.Sum(nil))
	return response
}

var _ = Describe("Unlock session", func() {
	var (
		ctrl     *gomock.Controller
		manual   *clock.Manual
		queue    *event.Queue
		sim      *radiosim.Adapter
		key      *mocks.KeyProvider
		act      *mocks.Actuator
		detector *wake.Detector
		machine  *fsm.Machine
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		manual = clock.NewManual()
		queue = event.NewQueue()
		sim = radiosim.New()
		key = mocks.NewKeyProvider(ctrl)
		key.EXPECT().ComputeKeyedHash(gomock.Any()).DoAndReturn(
			func(nonce auth.Nonce) (auth.Response, error) {
				return keyedHash(nonce), nil
			}).AnyTimes()
		act = mocks.NewActuator(ctrl)
		detector = wake.NewDetector(manual, wake.Policy{})

		manager, err := radio.NewManager(sim, queue, radio.AdvConfig{ServiceUUID: fobproto.UnlockServiceUUID})
		Expect(err).NotTo(HaveOccurred())

		machine, err = fsm.New(fsm.Config{
			Clock:    manual,
			Queue:    queue,
			Policy:   fsm.DefaultPolicy(),
			Auth:     auth.NewEngine(key),
			Radio:    manager,
			Wake:     detector,
			Actuator: act,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	drain := func() {
		for {
			select {
			case ev := <-queue.Events():
				machine.HandleEvent(ev)
			default:
				return
			}
		}
	}

	waitEvent := func() {
		select {
		case ev := <-queue.Events():
			machine.HandleEvent(ev)
		case <-time.After(time.Second):
			Fail("No event arrived")
		}
	}

	approach := func() {
		detector.Sense()
		machine.Tick()
		Expect(machine.State()).To(Equal(fsm.Advertising))
		Expect(sim.Advertising()).To(BeTrue())
	}

	connect := func() {
		Expect(sim.Connect()).To(Succeed())
		drain()
		Expect(machine.State()).To(Equal(fsm.GattSession))
	}

	readChallenge := func() auth.Nonce {
		var nonce auth.Nonce
		Eventually(sim.Notifications()).Should(Receive(
			WithTransform(func(n radiosim.Notification) fobproto.Characteristic {
				copy(nonce[:], n.Data)
				return n.Characteristic
			}, Equal(fobproto.CharChallenge))))
		return nonce
	}

	readStatus := func() fobproto.Status {
		for {
			var n radiosim.Notification
			Eventually(sim.Notifications()).Should(Receive(&n))
			if n.Characteristic == fobproto.CharStatus {
				return fobproto.Status(n.Data[0])
			}
		}
	}

	writeResponse := func(response []byte) {
		Expect(sim.Write(fobproto.CharResponse, response)).To(Succeed())
		drain()
	}

	requestUnlock := func() {
		Expect(sim.Write(fobproto.CharControl, []byte{fobproto.ControlUnlock})).To(Succeed())
		drain()
	}

	It("unlocks after a valid response inside the auth window", func() {
		act.EXPECT().RequestUnlock(gomock.Any()).Return(nil)

		approach()
		connect()

		response := keyedHash(readChallenge())
		writeResponse(response[:])
		Expect(readStatus()).To(Equal(fobproto.StatusAuthOK))
		Expect(machine.Authenticated()).To(BeTrue())

		manual.Advance(time.Second)
		requestUnlock()
		Expect(machine.State()).To(Equal(fsm.Unlocked))

		waitEvent()
		Expect(readStatus()).To(Equal(fobproto.StatusUnlocked))
		Expect(machine.State()).To(Equal(fsm.Sleep))
		Expect(sim.Connected()).To(BeFalse())
	})

	It("denies an unlock requested after the auth window lapses", func() {
		approach()
		connect()

		response := keyedHash(readChallenge())
		writeResponse(response[:])
		Expect(readStatus()).To(Equal(fobproto.StatusAuthOK))

		manual.Advance(6 * time.Second)
		requestUnlock()
		Expect(readStatus()).To(Equal(fobproto.StatusDenied))
		Expect(machine.State()).To(Equal(fsm.GattSession))
	})

	It("locks out after repeated failures and wakes again once the cooldown ends", func() {
		approach()
		connect()
		readChallenge()

		wrong := make([]byte, auth.ResponseLength)
		for i := 0; i < 3; i++ {
			writeResponse(wrong)
			Expect(readStatus()).To(Equal(fobproto.StatusAuthFail))
		}

		Expect(machine.State()).To(Equal(fsm.Sleep))
		Expect(machine.LockedOut()).To(BeTrue())
		Expect(sim.Connected()).To(BeFalse())

		detector.Sense()
		machine.Tick()
		Expect(machine.State()).To(Equal(fsm.Sleep), "wake must be refused during lockout")

		manual.Advance(30 * time.Second)
		detector.Sense()
		machine.Tick()
		Expect(machine.State()).To(Equal(fsm.Advertising))
	})

	It("returns to sleep when nobody connects", func() {
		approach()
		manual.Advance(10 * time.Second)
		machine.Tick()
		drain()
		Expect(machine.State()).To(Equal(fsm.Sleep))
		Expect(sim.Advertising()).To(BeFalse())
	})
})
