package pkg

import (
	"fmt"
	"strings"
)

// ValidateAccountAddress checks that an externally supplied address carries
// the configured prefix and a non-empty suffix. Host-generated component
// addresses always satisfy this; the check guards config typos.
func ValidateAccountAddress(address, prefix string) error {
	if !strings.HasPrefix(address, prefix) {
		return fmt.Errorf("address %q does not carry prefix %q", address, prefix)
	}
	if len(address) <= len(prefix) {
		return fmt.Errorf("address %q has no payload after prefix", address)
	}

	return nil
}
