package notifier

import (
	"fmt"
	"strings"

	"TakaneWatch/internal/model"
)

// maxBreakLines caps the alert body; a broad rally would otherwise
// exceed Telegram's message size limit.
const maxBreakLines = 20

// formatBreakReport formats the new-high breaks of a scan into a
// Telegram message. Prices are rounded to one decimal place here and
// only here; the engine compares raw values.
func formatBreakReport(rep *model.ScanReport, breaks []model.ScanResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🚨 <b>新高値ブレイク検知</b> | %s\n", rep.StartedAt.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("%d銘柄が高値を更新\n\n", len(breaks)))

	for i, r := range breaks {
		if i == maxBreakLines {
			b.WriteString(fmt.Sprintf("…ほか%d銘柄\n", len(breaks)-maxBreakLines))
			break
		}
		icon := "🔥"
		if r.Status == model.StatusATHBreak {
			icon = "🌟"
		}
		b.WriteString(fmt.Sprintf("%s %s %s ¥%.1f (旧高値 ¥%.1f, %d日ぶり)\n",
			icon, r.State.Code, r.State.Name, r.CurrentPrice, r.RelevantHigh, r.DaysSince))
	}

	b.WriteString(fmt.Sprintf("\nスキャン: %d銘柄 / 更新%d / 失敗%d",
		rep.Universe, rep.Updated, len(rep.Failures)))
	return b.String()
}
