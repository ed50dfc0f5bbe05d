package usecase

import (
	"fmt"
	"strings"
	"time"

	"MarketAdvisor/internal/domain"
)

const recommendationSchema = `{
  "buy_zone": {"min": <number>, "max": <number>},
  "sell_zone": {"min": <number>, "max": <number>},
  "stop_loss": {"min": <number>, "max": <number>}
}`

const traderRole = `You are a short-term %s trader combining technical and macro analysis. Read the attached daily chart, paying attention to price, volume and average volume. Identify support and resistance, then give a buy zone near support (lowest risk), a take-profit sell zone near resistance, and a narrow stop-loss zone just below the buy zone.`

func filterPrompt(articles []domain.Article, minDate time.Time) string {
	var b strings.Builder
	b.WriteString("Select the articles whose titles suggest an effect on macroeconomics (political, economic, social, technological, environmental or legal factors) or on cryptocurrency markets. ")
	fmt.Fprintf(&b, "Only keep articles published from %s onwards.\n\nArticles:\n", minDate.Format("2006-01-02"))
	for _, a := range articles {
		published := "unknown"
		if !a.PublishedAt.IsZero() {
			published = a.PublishedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "- %s | %s | %s\n", strings.TrimSpace(a.Title), published, a.Link)
	}
	b.WriteString("\nAnswer with a JSON array of the selected links only, for example [\"https://a\", \"https://b\"]. Return [] when none qualify.")
	return b.String()
}

func summarizePrompt(url string) string {
	return fmt.Sprintf(`The attached screenshots show one article (%s) from top to bottom. Ignore other articles, ads and navigation that may appear. Summarize it in at most 1000 words, keeping statistics and anything relevant to macroeconomic analysis.

Answer in this format:
Title: <article title>
Content: <summary>`, url)
}

func analyzePrompt(symbol string, summaries []domain.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Act as a cryptocurrency analyst focused on %s. Using the PESTEL framework and your own knowledge, explain how the following article summaries affect the crypto market and its sentiment. Keep to the main points.\n\n", symbol)
	for i, s := range summaries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(s.Text))
	}
	return b.String()
}

func opinionPrompt(symbol string, analysis domain.MarketAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, traderRole, symbol)
	b.WriteString("\n\n")
	writeAnalysis(&b, analysis)
	b.WriteString("\nAnswer only with JSON of this shape:\n")
	b.WriteString(recommendationSchema)
	return b.String()
}

func finalPrompt(symbol string, analysis domain.MarketAnalysis, opinions []domain.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, traderRole, symbol)
	b.WriteString("\n\n")
	writeAnalysis(&b, analysis)
	if len(opinions) == 0 {
		b.WriteString("\nNo other expert opinions are available for this run.\n")
	} else {
		b.WriteString("\nWeigh the opinions of other experts:\n")
		for _, op := range opinions {
			fmt.Fprintf(&b, "- expert %d: buy %s, sell %s, stop loss %s\n",
				op.Member, zoneText(op.BuyZone), zoneText(op.SellZone), zoneText(op.StopLoss))
		}
	}
	b.WriteString("\nAnswer only with JSON of this shape:\n")
	b.WriteString(recommendationSchema)
	return b.String()
}

func writeAnalysis(b *strings.Builder, analysis domain.MarketAnalysis) {
	if analysis.Empty() {
		b.WriteString("No market commentary is available for this run; rely on the chart.\n")
		return
	}
	b.WriteString("Scrutinize this market commentary:\n")
	b.WriteString(strings.TrimSpace(analysis.Text))
	b.WriteString("\n")
}

func zoneText(z domain.Zone) string {
	return fmt.Sprintf("%.2f-%.2f", float64(z.Min), float64(z.Max))
}
