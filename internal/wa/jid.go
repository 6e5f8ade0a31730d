package wa

import (
	"errors"
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// ErrInvalidTarget means the phone input contained no digits at all.
var ErrInvalidTarget = errors.New("invalid target phone number")

// NormalizeTarget canonicalizes a free-form phone string into a WhatsApp user
// JID: every non-digit is stripped and the default user server is appended.
// It is idempotent — feeding it an already-normalized "digits@s.whatsapp.net"
// yields the same JID, since the suffix carries no digits.
func NormalizeTarget(raw string) (types.JID, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return types.JID{}, fmt.Errorf("%w: %q", ErrInvalidTarget, raw)
	}
	return types.NewJID(digits.String(), types.DefaultUserServer), nil
}
