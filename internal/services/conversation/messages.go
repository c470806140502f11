package conversation

import (
	"fmt"
	"strings"

	"github.com/ternarybob/finsight/internal/models"
)

// Progress notices sent while a turn is running
const (
	NoticeFetching   = "🔍 Fetching stock data..."
	NoticeScraping   = "📊 Scraping data from Screener.in..."
	NoticeGenerating = "🤖 Generating AI insights..."
)

// EmptyQueryMessage is the reply to a blank message
const EmptyQueryMessage = "Please send a stock name or symbol."

const insightsHeading = "💡 **AI Insights & Sentiment Analysis**"

const errorTip = "💡 **Tip:** Use company name or NSE symbol from Nifty 50.\n" +
	"Examples: 'tcs', 'reliance', 'hdfcbank', 'infosys'"

// InsightsUnavailableMessage explains why no narrative could be produced
const InsightsUnavailableMessage = "⚠️ Could not generate AI insights.\n\n" +
	"**Free Tier Limits:**\n" +
	"• 15 requests per minute\n" +
	"• 1,500 requests per day\n\n" +
	"**Possible reasons:**\n" +
	"• Daily quota exhausted (resets at midnight UTC)\n" +
	"• Rate limit reached - wait a few minutes\n" +
	"• API key issue - verify your API key\n\n" +
	"💡 **Tip:** Free tier resets daily at midnight UTC.\n" +
	"Check usage: https://ai.dev/usage"

const welcomeHeader = `🤖 **Welcome to FinSight!**

I'm your AI-powered stock analysis assistant for **Nifty 50 stocks**.

**How to use:**
Simply send me a stock name or NSE symbol (e.g., "reliance", "tcs", "hdfcbank", "infosys") and I'll provide:
• Real-time metrics from Screener.in
• AI-generated insights
• Sentiment analysis

**Examples:**
• "tcs" or "TCS" → Tata Consultancy Services
• "reliance" → Reliance Industries
• "hdfcbank" → HDFC Bank
• "infosys" → Infosys

**Note:** I support Nifty 50 stocks only. Use company name or NSE symbol.`

// WelcomeMessage renders the greeting, listing the covered companies
func WelcomeMessage(records []models.EntityRecord) string {
	var b strings.Builder
	b.WriteString(welcomeHeader)

	if len(records) > 0 {
		fmt.Fprintf(&b, "\n\n**Covered stocks (%d):**\n", len(records))
		for i, r := range records {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.Symbol)
		}
	}

	b.WriteString("\n\nLet's get started! 📈")
	return b.String()
}

// FormatMetrics renders the metrics reply. An error map renders as the
// error line alone.
func FormatMetrics(metrics models.MetricMap) string {
	if metrics.HasError() {
		return "❌ " + metrics.ErrorMessage()
	}

	name, ok := metrics.Get(models.LabelCompanyName)
	if !ok {
		name = "Stock"
	}

	lines := []string{"📊 **Stock Metrics**\n", "**" + name + "**\n"}

	found := 0
	for _, label := range models.DisplayLabels {
		if value, ok := metrics.Get(label); ok {
			lines = append(lines, fmt.Sprintf("• **%s**: %s", label, value))
			found++
		}
	}
	if found == 0 {
		lines = append(lines, "⚠️ Limited data available for this stock.")
	}

	return strings.Join(lines, "\n")
}

// FormatError renders a failed lookup with a usage tip
func FormatError(metrics models.MetricMap) string {
	return "❌ " + metrics.ErrorMessage() + "\n\n" + errorTip
}

// FormatNarrative renders the insights reply. The quota notice is passed
// through unchanged.
func FormatNarrative(narrative models.Narrative) string {
	switch {
	case !narrative.HasText():
		return InsightsUnavailableMessage
	case narrative.Status == models.NarrativeQuotaExhausted:
		return narrative.Text
	default:
		return insightsHeading + "\n\n" + narrative.Text
	}
}
