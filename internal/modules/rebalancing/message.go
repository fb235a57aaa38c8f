package rebalancing

import (
	"fmt"
	"strings"

	"github.com/aristath/rebalancer/internal/domain"
)

// FormatRebalanceMessage renders the Telegram HTML message for an executed
// batch (autoExecuted) or a manual signal.
func FormatRebalanceMessage(venue domain.Venue, deviation float64, actions []domain.RebalanceAction, autoExecuted bool) string {
	var b strings.Builder

	if autoExecuted {
		b.WriteString("🤖 <b>AUTO-TRADE EXECUTED</b>\n")
	} else {
		b.WriteString("⚠️ <b>MANUAL REBALANCE SIGNAL</b>\n")
	}
	fmt.Fprintf(&b, "Exchange: %s\n", venue)
	fmt.Fprintf(&b, "Deviation: <b>%.2f%%</b>\n\n", deviation)
	b.WriteString("<b>Actions Required:</b>\n")

	for i, a := range actions {
		if i > 0 {
			b.WriteString("\n\n")
		}
		marker := "🔴"
		if a.Side.IsBuy() {
			marker = "🟢"
		}
		fmt.Fprintf(&b, "%s <b>%s %s</b>\n   Amount: %.4f\n   Value: $%.2f",
			marker, a.Side, a.Symbol, a.Amount, a.USDValue)
	}

	b.WriteString("\n\n<i>Check dashboard for details.</i>")
	return b.String()
}
