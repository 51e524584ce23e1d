//go:build linux

package radio

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"

	"github.com/nexlock/keyfob-firmware/internal/log"
	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

var (
	unlockServiceUUID = ble.MustParse(fobproto.UnlockServiceUUID)
	challengeUUID     = ble.MustParse(fobproto.ChallengeUUID)
	responseUUID      = ble.MustParse(fobproto.ResponseUUID)
	controlUUID       = ble.MustParse(fobproto.ControlUUID)
	statusUUID        = ble.MustParse(fobproto.StatusUUID)
)

// BLEAdapter is the peripheral-role backend on the Linux HCI stack. The
// go-ble stack formats advertising data itself, so the raw payload built by
// the Manager is advisory here; the advertised service is the same.
type BLEAdapter struct {
	localName string

	mu        sync.Mutex
	handler   Handler
	device    ble.Device
	advCancel context.CancelFunc
	conn      ble.Conn
	notifiers map[fobproto.Characteristic]ble.Notifier
}

// NewBLEAdapter initializes the HCI device and registers the unlock service.
func NewBLEAdapter(localName string) (*BLEAdapter, error) {
	device, err := linux.NewDevice()
	if err != nil {
		return nil, fmt.Errorf("ble: failed to enable device: %s", err)
	}
	ble.SetDefaultDevice(device)

	a := &BLEAdapter{
		localName: localName,
		device:    device,
		notifiers: make(map[fobproto.Characteristic]ble.Notifier),
	}

	svc := ble.NewService(unlockServiceUUID)

	challenge := svc.NewCharacteristic(challengeUUID)
	challenge.HandleNotify(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
		a.subscribed(fobproto.CharChallenge, req, n)
	}))

	response := svc.NewCharacteristic(responseUUID)
	response.HandleWrite(ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		a.wrote(fobproto.CharResponse, req)
	}))

	control := svc.NewCharacteristic(controlUUID)
	control.HandleWrite(ble.WriteHandlerFunc(func(req ble.Request, rsp ble.ResponseWriter) {
		a.wrote(fobproto.CharControl, req)
	}))

	status := svc.NewCharacteristic(statusUUID)
	status.HandleNotify(ble.NotifyHandlerFunc(func(req ble.Request, n ble.Notifier) {
		a.subscribed(fobproto.CharStatus, req, n)
	}))

	if err := ble.AddService(svc); err != nil {
		return nil, fmt.Errorf("ble: failed to register unlock service: %s", err)
	}
	return a, nil
}

func (a *BLEAdapter) SetHandler(h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

func (a *BLEAdapter) StartAdvertising(_ []byte) error {
	a.mu.Lock()
	if a.advCancel != nil {
		a.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.advCancel = cancel
	a.mu.Unlock()

	go func() {
		err := ble.AdvertiseNameAndServices(ctx, a.localName, unlockServiceUUID)
		if err != nil && ctx.Err() == nil {
			log.Error("Advertising terminated: %s", err)
		}
	}()
	return nil
}

func (a *BLEAdapter) StopAdvertising() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.advCancel != nil {
		a.advCancel()
		a.advCancel = nil
	}
	return nil
}

func (a *BLEAdapter) Notify(c fobproto.Characteristic, data []byte) error {
	a.mu.Lock()
	n, ok := a.notifiers[c]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("ble: no subscriber on %s", c)
	}
	if _, err := n.Write(data); err != nil {
		return fmt.Errorf("ble: notify %s: %s", c, err)
	}
	return nil
}

func (a *BLEAdapter) Disconnect() error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// subscribed runs when the client enables notifications on c. The first
// activity from a new connection reports Connected and arms the disconnect
// watcher.
func (a *BLEAdapter) subscribed(c fobproto.Characteristic, req ble.Request, n ble.Notifier) {
	a.track(req.Conn())
	a.mu.Lock()
	a.notifiers[c] = n
	a.mu.Unlock()
	// Block until the subscription ends; go-ble invalidates the Notifier
	// when this handler returns.
	<-n.Context().Done()
	a.mu.Lock()
	if a.notifiers[c] == n {
		delete(a.notifiers, c)
	}
	a.mu.Unlock()
}

func (a *BLEAdapter) wrote(c fobproto.Characteristic, req ble.Request) {
	a.track(req.Conn())
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	if h != nil {
		h.Wrote(c, req.Data())
	}
}

func (a *BLEAdapter) track(conn ble.Conn) {
	a.mu.Lock()
	if a.conn == conn || conn == nil {
		a.mu.Unlock()
		return
	}
	a.conn = conn
	h := a.handler
	a.mu.Unlock()

	if h != nil {
		h.Connected()
	}
	go func() {
		<-conn.Disconnected()
		a.mu.Lock()
		if a.conn == conn {
			a.conn = nil
		}
		h := a.handler
		a.mu.Unlock()
		if h != nil {
			h.Disconnected()
		}
	}()
}
