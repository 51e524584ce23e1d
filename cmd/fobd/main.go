// fobd runs the keyfob firmware core on a development host: the real state
// machine, authentication engine, and timing discipline over the Linux BLE
// stack (or the in-process simulator with -sim). On hardware the same core
// is driven by the board support package instead of this wrapper.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexlock/keyfob-firmware/internal/auth"
	"github.com/nexlock/keyfob-firmware/internal/clock"
	"github.com/nexlock/keyfob-firmware/internal/event"
	"github.com/nexlock/keyfob-firmware/internal/fsm"
	"github.com/nexlock/keyfob-firmware/internal/log"
	"github.com/nexlock/keyfob-firmware/internal/radio"
	"github.com/nexlock/keyfob-firmware/internal/radio/radiosim"
	"github.com/nexlock/keyfob-firmware/internal/wake"
	"github.com/nexlock/keyfob-firmware/pkg/actuator"
	"github.com/nexlock/keyfob-firmware/pkg/fobproto"
)

func envOrDefault(name, value string) string {
	if env, ok := os.LookupEnv(name); ok {
		return env
	}
	return value
}

func main() {
	var (
		debug     bool
		sim       bool
		deviceID  string
		bleName   string
		secretDir string
		txPower   int
	)
	policy := fsm.DefaultPolicy()

	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&sim, "sim", false, "Use the in-process simulated radio instead of the BLE stack")
	flag.StringVar(&deviceID, "device-id", envOrDefault("FOB_DEVICE_ID", ""), "Device identity used for key derivation. Defaults to $FOB_DEVICE_ID.")
	flag.StringVar(&bleName, "ble-name", envOrDefault("FOB_BLE_NAME", "keyfob"), "Advertised local name. Defaults to $FOB_BLE_NAME.")
	flag.StringVar(&secretDir, "secret-dir", envOrDefault("FOB_SECRET_DIR", ""), "Fallback `directory` for the encrypted-file secret backend. Defaults to $FOB_SECRET_DIR.")
	flag.IntVar(&txPower, "tx-power", 127, "Tx power in dBm for the advertising payload; 127 omits the field")
	var maxFail uint
	flag.UintVar(&maxFail, "max-fail-attempts", uint(policy.MaxFailAttempts), "Failed authentication attempts before lockout")
	flag.DurationVar(&policy.LockoutDuration, "lockout", policy.LockoutDuration, "Cooldown after exceeding max failed attempts")
	flag.DurationVar(&policy.AuthWindow, "auth-window", policy.AuthWindow, "Window after authentication during which unlock is honored")
	flag.DurationVar(&policy.AdvWindow, "adv-window", policy.AdvWindow, "Advertising window after a proximity wake")
	flag.DurationVar(&policy.ConnIdleTimeout, "idle-timeout", policy.ConnIdleTimeout, "Idle supervision timeout for a connection")
	flag.DurationVar(&policy.UnlockPulse, "unlock-pulse", policy.UnlockPulse, "Actuator pulse duration and failsafe bound")
	flag.BoolVar(&policy.DisconnectOnAuthFail, "disconnect-on-auth-fail", false, "Drop the connection after any failed authentication attempt")
	flag.BoolVar(&policy.RequireWakeConfirmation, "require-wake-confirmation", false, "Require a second corroborating proximity reading before waking")
	flag.DurationVar(&policy.WakeConfirmWindow, "wake-confirm-window", policy.WakeConfirmWindow, "Window for the corroborating proximity reading")
	flag.Parse()

	if debug {
		log.SetLevel(log.LevelDebug)
	} else {
		log.SetLevel(log.LevelInfo)
	}
	if maxFail == 0 || maxFail > 255 {
		fmt.Fprintln(os.Stderr, "Error: -max-fail-attempts must be between 1 and 255")
		os.Exit(1)
	}
	if deviceID == "" {
		fmt.Fprintln(os.Stderr, "Error: -device-id (or $FOB_DEVICE_ID) is required")
		os.Exit(1)
	}

	store, err := auth.OpenStore(secretDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	// Provisioned overrides fill in policy fields the command line left
	// untouched; explicit flags always win.
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	overrides, err := store.LoadPolicyOverrides()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	for field, value := range overrides {
		if setFlags[field] {
			continue
		}
		if err := fsm.ApplyPolicyField(&policy, field, value); err != nil {
			fmt.Fprintf(os.Stderr, "Error: provisioned policy override: %s\n", err)
			os.Exit(1)
		}
	}
	if setFlags["max-fail-attempts"] {
		policy.MaxFailAttempts = uint8(maxFail)
	}

	key, err := loadKey(store, deviceID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		if errors.Is(err, fobproto.ErrNotProvisioned) {
			fmt.Fprintln(os.Stderr, "Run fob-provision to install a shared secret.")
		}
		os.Exit(1)
	}
	defer key.Destroy()

	queue := event.NewQueue()
	adapter, err := newAdapter(sim, bleName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	advConfig := radio.AdvConfig{ServiceUUID: fobproto.UnlockServiceUUID}
	if txPower >= -127 && txPower <= 20 {
		p := int8(txPower)
		advConfig.TxPower = &p
	}
	manager, err := radio.NewManager(adapter, queue, advConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	systemClock := clock.System()
	detector := wake.NewDetector(systemClock, wake.Policy{
		RequireConfirmation: policy.RequireWakeConfirmation,
		ConfirmWindowMillis: int64(policy.WakeConfirmWindow / time.Millisecond),
	})

	machine, err := fsm.New(fsm.Config{
		Clock:    systemClock,
		Queue:    queue,
		Policy:   policy,
		Auth:     auth.NewEngine(key),
		Radio:    manager,
		Wake:     detector,
		// The physical pulse must complete inside the failsafe bound.
		Actuator: &actuator.PulseDriver{PulseDuration: policy.UnlockPulse / 4},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// On hardware the proximity sensor's interrupt line calls Sense; on a
	// development host SIGUSR1 stands in for the wake edge.
	wakeSignal := make(chan os.Signal, 1)
	signal.Notify(wakeSignal, syscall.SIGUSR1)
	go func() {
		for range wakeSignal {
			detector.Sense()
		}
	}()

	log.Info("keyfob firmware starting (device %s)", deviceID)
	if err := machine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func loadKey(store *auth.Store, deviceID string) (*auth.SoftwareKey, error) {
	secret, err := store.LoadSecret()
	if err != nil {
		return nil, err
	}
	defer auth.Zeroize(secret)
	return auth.NewSoftwareKey(secret, deviceID)
}

func newAdapter(sim bool, bleName string) (radio.Adapter, error) {
	if sim {
		log.Info("Using simulated radio adapter")
		return radiosim.New(), nil
	}
	adapter, err := radio.NewBLEAdapter(bleName)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}
