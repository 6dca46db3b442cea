package writer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

const maxSubjectLen = 40

const systemPromptTemplate = `You write cold-email openers for a local services product. Every message goes to the owner of a small local business.

Rules:
- The icebreaker is at most 60 words, 3-4 sentences.
- It ends with exactly one question as the call to action, 6 words or fewer.
- Reference concrete details from the business context; never invent facts.
- Plain conversational English. No flattery padding, no exclamation marks.
- Never use any of these phrases: %s.
- The subject line is at most 40 characters, no emoji, not generic.

Return a valid JSON object and nothing else:
{"icebreaker": "<the icebreaker>", "subject_line": "<the subject>"}`

// formulaInstructions steer the opener's rhetorical shape.
var formulaInstructions = map[string]string{
	FormulaWebsiteInsight:   "Open with a specific observation from the business's website content, then connect it to one way the product helps. The observation must be something only their site says.",
	FormulaLocalContext:     "Anchor the opener in the business's city or neighbourhood: what serving that area means for them. Stay concrete about the place.",
	FormulaIndustryQuestion: "Pose a sharp question about how businesses in this category handle a day-to-day operational problem the product addresses.",
	FormulaSocialProof:      "Lean on their reviews: reference their rating or what reviewers praise, then pivot to keeping that reputation visible to new customers.",
	FormulaDirectValue:      "State the concrete outcome the product delivers for this category of business in the first sentence. No warm-up.",
	FormulaCuriosityHook:    "Open with an unexpected, verifiable detail about their market or category that invites a 'how so?'. Resolve it halfway, leave the rest for the reply.",
	FormulaProblemAgitation: "Name a specific pain this category of business lives with, make it felt in one sentence, then hint the product removes it.",
}

// subjectStyles is the uniform-random pool of subject treatments.
var subjectStyles = []string{
	"the business name up front",
	"city plus business category",
	"a short question",
	`a "Re:" style follow-up`,
	"a direct benefit statement",
	"a curiosity tease",
}

// buildSystemPrompt injects the forbidden-phrase list.
func buildSystemPrompt(forbidden []string) string {
	list := "none"
	if len(forbidden) > 0 {
		list = `"` + strings.Join(forbidden, `", "`) + `"`
	}
	return fmt.Sprintf(systemPromptTemplate, list)
}

// buildUserPrompt assembles the business context, the organisation
// descriptor, any fetched site content, and the formula instruction.
func buildUserPrompt(b *model.Business, org Org, siteContent, formula, style string) string {
	var sb strings.Builder

	sb.WriteString("Business:\n")
	fmt.Fprintf(&sb, "- Name: %s\n", b.Name)
	if b.City != "" {
		loc := b.City
		if b.State != "" {
			loc += ", " + b.State
		}
		fmt.Fprintf(&sb, "- Location: %s\n", loc)
	}
	if len(b.Categories) > 0 {
		fmt.Fprintf(&sb, "- Category: %s\n", strings.Join(b.Categories, ", "))
	}
	if b.ReviewCount > 0 {
		fmt.Fprintf(&sb, "- Reviews: %.1f stars over %d reviews", b.Rating, b.ReviewCount)
		if b.ReviewPercent > 0 {
			fmt.Fprintf(&sb, " (%.0f%% are 4-5 star)", b.ReviewPercent)
		}
		sb.WriteString("\n")
	}
	if len(b.SentimentTags) > 0 {
		fmt.Fprintf(&sb, "- Reviewers mention: %s\n", strings.Join(b.SentimentTags, ", "))
	}
	if len(b.Competitors) > 0 {
		fmt.Fprintf(&sb, "- Nearby competitors: %s\n", strings.Join(b.Competitors, ", "))
	}
	if flags := flagLine(b.Flags); flags != "" {
		fmt.Fprintf(&sb, "- Notable: %s\n", flags)
	}
	if b.BookingURL != "" {
		sb.WriteString("- Takes bookings online\n")
	}
	if b.ContactFirst != "" {
		fmt.Fprintf(&sb, "- Owner/contact: %s\n", strings.TrimSpace(b.ContactFirst+" "+b.ContactLast))
	}

	fmt.Fprintf(&sb, "\nSender: %s. Product: %s. Value: %s.\n", org.Name, org.Product, org.ValueProp)

	if siteContent != "" {
		fmt.Fprintf(&sb, "\nTheir website says:\n%s\n", siteContent)
	}

	fmt.Fprintf(&sb, "\nApproach: %s\n", formulaInstructions[formula])
	fmt.Fprintf(&sb, "Subject style: %s.\n", style)

	return sb.String()
}

func flagLine(f model.BusinessFlags) string {
	var parts []string
	if f.WomenOwned {
		parts = append(parts, "women-owned")
	}
	if f.VeteranOwned {
		parts = append(parts, "veteran-owned")
	}
	if f.SmallBusiness {
		parts = append(parts, "small business")
	}
	if f.WheelchairAccessible {
		parts = append(parts, "wheelchair accessible")
	}
	return strings.Join(parts, ", ")
}

// copyPayload is the JSON shape the model must return.
type copyPayload struct {
	Icebreaker  string `json:"icebreaker"`
	SubjectLine string `json:"subject_line"`
}

// parseCopy extracts the copy object from model output, tolerating code
// fences and prose around the JSON.
func parseCopy(text string) (*copyPayload, error) {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```"); idx != -1 {
		text = strings.TrimPrefix(text[idx:], "```json")
		text = strings.TrimPrefix(text, "```")
		if end := strings.LastIndex(text, "```"); end != -1 {
			text = text[:end]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, eris.New("writer: no JSON object in output")
	}

	var payload copyPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, eris.Wrap(err, "writer: parse copy")
	}
	payload.Icebreaker = strings.TrimSpace(payload.Icebreaker)
	payload.SubjectLine = clampSubject(payload.SubjectLine)
	if payload.Icebreaker == "" || payload.SubjectLine == "" {
		return nil, eris.New("writer: missing icebreaker or subject")
	}
	return &payload, nil
}

// clampSubject enforces the 40-character ceiling, truncating on a rune
// boundary with an ellipsis.
func clampSubject(s string) string {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"`))
	runes := []rune(s)
	if len(runes) <= maxSubjectLen {
		return s
	}
	return string(runes[:maxSubjectLen-1]) + "…"
}
