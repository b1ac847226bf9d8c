package service

import (
	"fmt"
	"strings"

	"uni-counselor/internal/models"
)

const counselorSystemPrompt = `You are a friendly, proactive AI counselor helping international students study in Germany. Your role is to:

1. **Ask Questions Proactively**: When information is missing, ask targeted questions in a natural, conversational way. Ask one question at a time.

2. **Provide Specific Recommendations**: When students ask about programmes or universities, use ONLY the programmes listed in the context and give the actual details: university name, programme title, tuition fees, language, duration, deadlines, city. NEVER say "visit the website" - provide the information from the context, and never invent programmes that are not listed.

3. **Be Conversational**: Speak like a helpful human counselor, not a robot. Be warm and encouraging.

4. **Immigration Disclaimer**: For visa/immigration questions, always include: "This is informational only and not legal advice. Always confirm with official embassies/authorities."

5. **Action Plan**: When you and the student agree on concrete next steps, append a fenced block to the very end of your reply:

` + "```plan\n" + `{"version":1,"steps":[{"action":"add","title":"<step title>","status":"pending","due_date":"YYYY-MM-DD"}]}
` + "```" + `

Use action "update" with a status of "in_progress" or "completed" when the student reports progress on an existing step (match it by title). Omit due_date when no date was discussed. Do not mention the block to the student.`

// RetrievedDoc is one document actually placed into the prompt. The
// assistant message's sources are built from these and nothing else.
type RetrievedDoc struct {
	Title   string
	Excerpt string
	URL     string
}

func formatProfileContext(profile *models.StudentProfile) string {
	if profile == nil {
		return ""
	}

	budget := "Not specified"
	if profile.BudgetFundsEUR != nil {
		budget = fmt.Sprintf("%.0f EUR/year", *profile.BudgetFundsEUR)
	}
	cities := "Not specified"
	if len(profile.PreferredCities) > 0 {
		cities = strings.Join(profile.PreferredCities, ", ")
	}

	return fmt.Sprintf(`Student Profile:
- Nationality: %s
- Current Education: %s in %s
- GPA/Marks: %s
- Desired Study Level: %s
- Desired Field: %s
- Preferred Cities: %s
- English Level: %s
- German Level: %s
- Budget/Funds: %s
`,
		orUnspecified(profile.Nationality),
		orUnspecified(profile.HighestEducationLevel),
		orUnspecified(profile.HighestEducationField),
		orUnspecified(profile.GPAOrMarks),
		orUnspecified(profile.DesiredStudyLevel),
		orUnspecified(profile.DesiredField),
		cities,
		orUnspecified(profile.EnglishLevel),
		orUnspecified(profile.GermanLevel),
		budget,
	)
}

func formatDocumentContext(docs []RetrievedDoc) string {
	if len(docs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== Available Programmes and Universities in Database ===\n")
	for _, doc := range docs {
		fmt.Fprintf(&b, "\n%s\n%s\n", doc.Title, doc.Excerpt)
		if doc.URL != "" {
			fmt.Fprintf(&b, "Source URL: %s\n", doc.URL)
		}
		b.WriteString("---\n")
	}
	return b.String()
}

func formatAssessmentContext(assessment *models.Assessment) string {
	if assessment == nil {
		return ""
	}
	return fmt.Sprintf(`Current Assessment:
- Feasibility: %s (%.1f%%)
- Key Gaps: %s
`,
		assessment.OverallFeasibility,
		assessment.ScoreDetails.Percentage,
		orNone(strings.Join(assessment.KeyGaps, ", ")),
	)
}

func formatPlanContext(steps []models.ActionPlanStep) string {
	if len(steps) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Current Action Plan:\n")
	for _, step := range steps {
		fmt.Fprintf(&b, "- %s (%s)\n", step.Title, step.Status)
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "None identified"
	}
	return s
}
