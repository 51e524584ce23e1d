//go:build !production

// fob-provision is the factory/service provisioning console. It installs
// the shared secret and advertising parameters on a development-host secret
// store. The tool is compiled out of production firmware images; in the
// field the same commands arrive over the (out of scope) UART console.
package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/shlex"
	"golang.org/x/term"

	"github.com/nexlock/keyfob-firmware/internal/auth"
	"github.com/nexlock/keyfob-firmware/internal/fsm"
	"github.com/nexlock/keyfob-firmware/internal/log"
)

const helpText = `Commands:
  set-secret                  Install a shared secret (prompted, hex-encoded, 32 bytes)
  gen-secret                  Generate and install a random shared secret, printing it once
  set-policy <field> <value>  Install a policy override (see 'set-policy' for fields)
  self-test                   Verify a challenge/response round trip against the stored secret
  show                        Show provisioning state
  help                        Show this message
  quit                        Exit`

func main() {
	var (
		secretDir string
		tokenPath string
		deviceID  string
	)
	flag.StringVar(&secretDir, "secret-dir", os.Getenv("FOB_SECRET_DIR"), "Fallback `directory` for the encrypted-file secret backend")
	flag.StringVar(&tokenPath, "authorization", os.Getenv("FOB_PROVISION_TOKEN"), "`file` containing a factory-signed provisioning token")
	flag.StringVar(&deviceID, "device-id", os.Getenv("FOB_DEVICE_ID"), "Device identity used for key derivation")
	flag.Parse()
	log.SetLevel(log.LevelWarning)

	if err := checkAuthorization(tokenPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	store, err := auth.OpenStore(secretDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("keyfob provisioning console. Type 'help' for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Printf("Invalid command: %s\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Println(helpText)
		case "quit", "exit":
			return
		case "set-secret":
			if err := setSecret(store); err != nil {
				fmt.Printf("Error: %s\n", err)
			}
		case "gen-secret":
			if err := genSecret(store); err != nil {
				fmt.Printf("Error: %s\n", err)
			}
		case "set-policy":
			if err := setPolicy(store, args[1:]); err != nil {
				fmt.Printf("Error: %s\n", err)
			}
		case "self-test":
			if err := selfTest(store, deviceID); err != nil {
				fmt.Printf("Self-test FAILED: %s\n", err)
			} else {
				fmt.Println("Self-test passed.")
			}
		case "show":
			show(store)
		default:
			fmt.Printf("Unrecognized command %q. Type 'help' for commands.\n", args[0])
		}
	}
}

func setSecret(store *auth.Store) error {
	fmt.Print("Shared secret (hex): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading secret: %w", err)
	}
	secret, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("secret must be hex-encoded: %w", err)
	}
	defer auth.Zeroize(secret)
	if err := store.SaveSecret(secret); err != nil {
		return err
	}
	fmt.Println("Secret installed.")
	return nil
}

func genSecret(store *auth.Store) error {
	secret := make([]byte, auth.MasterSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("generating secret: %w", err)
	}
	defer auth.Zeroize(secret)
	if err := store.SaveSecret(secret); err != nil {
		return err
	}
	// Printed exactly once so it can be enrolled in the companion app.
	fmt.Printf("Secret installed: %s\n", hex.EncodeToString(secret))
	return nil
}

func setPolicy(store *auth.Store, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: set-policy <field> <value>; fields: %s", strings.Join(fsm.PolicyFields, ", "))
	}
	field, value := args[0], args[1]
	// Validate against the defaults before persisting anything.
	policy := fsm.DefaultPolicy()
	if err := fsm.ApplyPolicyField(&policy, field, value); err != nil {
		return err
	}
	if err := store.SavePolicyOverride(field, value); err != nil {
		return err
	}
	fmt.Printf("Policy override installed: %s=%s\n", field, value)
	return nil
}

func selfTest(store *auth.Store, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("-device-id (or $FOB_DEVICE_ID) is required for self-test")
	}
	secret, err := store.LoadSecret()
	if err != nil {
		return err
	}
	defer auth.Zeroize(secret)
	key, err := auth.NewSoftwareKey(secret, deviceID)
	if err != nil {
		return err
	}
	defer key.Destroy()

	engine := auth.NewEngine(key)
	nonce, err := engine.IssueNonce()
	if err != nil {
		return err
	}
	response, err := engine.ExpectedResponse(nonce)
	if err != nil {
		return err
	}
	if !engine.Verify(nonce, response[:]) {
		return fmt.Errorf("valid response rejected")
	}
	var wrong [auth.ResponseLength]byte
	if engine.Verify(nonce, wrong[:]) {
		return fmt.Errorf("invalid response accepted")
	}
	return nil
}

func show(store *auth.Store) {
	secret, err := store.LoadSecret()
	if err != nil {
		fmt.Printf("Secret: not provisioned (%s)\n", err)
	} else {
		auth.Zeroize(secret)
		fmt.Println("Secret: provisioned")
	}

	overrides, err := store.LoadPolicyOverrides()
	if err != nil {
		fmt.Printf("Policy overrides: unreadable (%s)\n", err)
		return
	}
	if len(overrides) == 0 {
		fmt.Println("Policy overrides: none")
		return
	}
	fields := make([]string, 0, len(overrides))
	for f := range overrides {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Printf("Policy override: %s=%s\n", f, overrides[f])
	}
}
