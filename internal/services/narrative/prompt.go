package narrative

import (
	"fmt"
	"strings"

	"github.com/ternarybob/finsight/internal/models"
)

const systemInstruction = `You are an expert financial analyst specializing in Indian stock market analysis. Provide clear, concise, and actionable insights.`

const promptTemplate = `You are a financial analyst. Analyze the following scraped data for %s.
Provide:

1. Bullish insights (2-3 key positive points)
2. Bearish risks (2-3 key concerns)
3. Overall sentiment (Positive/Neutral/Negative)
4. Actionable summary in 4 lines

Data:
%s

Format your response clearly with headings for each section.`

// QuotaExhaustedNotice is returned in place of a narrative once the
// provider reports the daily free-tier quota is spent.
const QuotaExhaustedNotice = "⚠️ **Free Tier Quota Exhausted**\n\n" +
	"Your daily free tier quota (1,500 requests/day) has been exhausted.\n\n" +
	"**What to do:**\n" +
	"• Wait until midnight UTC for quota reset\n" +
	"• Check your usage: https://ai.dev/usage\n" +
	"• Consider upgrading to a paid plan for higher limits\n\n" +
	"The stock metrics above are still available!"

// FormatMetrics renders metrics as "label: value" lines in map order,
// leaving out the internal slug and any error entry.
func FormatMetrics(metrics models.MetricMap) string {
	lines := make([]string, 0, metrics.Len())
	for _, m := range metrics.Entries() {
		if m.Label == models.LabelError || m.Label == models.LabelSlug {
			continue
		}
		lines = append(lines, m.Label+": "+m.Value)
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt renders the analysis prompt for entityName
func BuildPrompt(entityName string, metrics models.MetricMap) string {
	return fmt.Sprintf(promptTemplate, entityName, FormatMetrics(metrics))
}
