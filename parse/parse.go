package parse

import (
	"regexp"
	"strings"

	"github.com/circuitsaga/payvoice/model"
)

// UnknownSender is reported when the body carries an amount but the
// "received ... from ... at ..." pattern does not match.
const UnknownSender = "Unknown"

var (
	// First currency-marked token anywhere in the body. A single space
	// between the rupee sign and the digits is tolerated.
	amountPattern = regexp.MustCompile(`₹\s?(\d+(?:\.\d+)?)`)

	// Payer name sits between "received ₹<amount> from" and the next "at".
	// Keywords match case-insensitively.
	senderPattern = regexp.MustCompile(`(?i)received\s+₹[\d.]+\s+from\s+(.+?)\s+at`)
)

// Extract pulls the transfer amount and payer name out of a notification
// body such as "received ₹1.0 from MAJIDA B at 08:29 AM". The boolean is
// false when no amount was found; the sender name is still resolved (or
// defaulted) in that case. Pure function, safe for concurrent use.
func Extract(body string) (model.PaymentEvent, bool) {
	evt := model.PaymentEvent{Sender: UnknownSender}

	if m := senderPattern.FindStringSubmatch(body); m != nil {
		evt.Sender = strings.TrimSpace(m[1])
	}

	m := amountPattern.FindStringSubmatch(body)
	if m == nil {
		return evt, false
	}
	evt.Amount = m[1]

	return evt, true
}
