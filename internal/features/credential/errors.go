package credential

import (
	"fmt"
	"strings"
)

// MissingCredentialFieldsError reports exactly which credential fields are
// absent and which are present. The generic "decryption failed" message this
// replaces was the single worst diagnostic in the old pipeline.
type MissingCredentialFieldsError struct {
	Missing []string
	Present []string
}

func (e *MissingCredentialFieldsError) Error() string {
	return fmt.Sprintf("incomplete POS credentials: missing [%s], present [%s]",
		strings.Join(e.Missing, ", "), strings.Join(e.Present, ", "))
}
