package notifier

import (
	"fmt"
	"html"
	"strings"

	"CryptoIngest/internal/model"
	"CryptoIngest/internal/recorder"
)

// maxListed caps how many failures or warnings are spelled out in one message.
const maxListed = 10

// FormatRunSummary formats a run summary into a Telegram message.
func FormatRunSummary(s *model.RunSummary) string {
	var b strings.Builder

	icon := "✅"
	switch s.Status {
	case model.RunFailed:
		icon = "❌"
	case model.RunCancelled:
		icon = "⏹"
	}
	b.WriteString(fmt.Sprintf("%s <b>CryptoIngest</b> | %s\n\n", icon, s.StartedAt.UTC().Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("状态: %s (%.1fs)\n", s.Status, s.Duration().Seconds()))
	b.WriteString(fmt.Sprintf("窗口: %d 天\n", s.Window))
	b.WriteString(fmt.Sprintf("币种: %d/%d 成功\n", s.Succeeded, s.Attempted))
	b.WriteString(fmt.Sprintf("Raw rows: %d\n", s.RawRecords))
	b.WriteString(fmt.Sprintf("Processed rows: %d\n", s.ProcessedRecords))

	if len(s.Failures) > 0 {
		b.WriteString("\n⚠️ <b>失败币种:</b>\n")
		for i, f := range s.Failures {
			if i == maxListed {
				b.WriteString(fmt.Sprintf("  … 另有 %d 个\n", len(s.Failures)-maxListed))
				break
			}
			b.WriteString(fmt.Sprintf("  %s: %s (%s)\n", f.Coin, html.EscapeString(f.Reason), f.Kind))
		}
	}
	if len(s.Warnings) > 0 {
		b.WriteString(fmt.Sprintf("\n🧹 丢弃异常K线: %d\n", len(s.Warnings)))
		for i, w := range s.Warnings {
			if i == maxListed {
				b.WriteString(fmt.Sprintf("  … 另有 %d 条\n", len(s.Warnings)-maxListed))
				break
			}
			b.WriteString(fmt.Sprintf("  %s @%d: %s\n", w.Coin, w.OpenTimeMs, html.EscapeString(w.Reason)))
		}
	}
	if s.Error != "" {
		b.WriteString(fmt.Sprintf("\n错误: %s\n", html.EscapeString(s.Error)))
	}

	return b.String()
}

// FormatHistory formats recent run history for the /history command.
func FormatHistory(runs []recorder.RunRecord) string {
	if len(runs) == 0 {
		return "暂无运行记录"
	}
	var b strings.Builder
	b.WriteString("📜 <b>最近运行</b>\n\n")
	for _, r := range runs {
		b.WriteString(fmt.Sprintf("#%d %s %s %d/%d raw=%d processed=%d\n",
			r.ID, r.StartedAt.UTC().Format("01-02 15:04"), r.Status,
			r.Succeeded, r.Attempted, r.RawRecords, r.ProcessedRecords))
	}
	return b.String()
}
