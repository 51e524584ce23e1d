package fsm_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSessionScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Keyfob Session Suite")
}
