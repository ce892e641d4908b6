// internal/workers/checklist/enrich-checklist/prompt.go
package enrichchecklist

import (
	"encoding/json"
	"fmt"
	"strings"

	"visabuddy-engine/internal/models"
)

const systemPrompt = `You are a visa documentation expert helping applicants prepare embassy submissions.

You will receive a fixed list of required documents and an applicant profile. Your job is to enrich each document entry with applicant-facing guidance.

STRICT CONTRACT, every rule is mandatory:
1. Return a JSON object only. No prose before or after it.
2. The "checklist" array must contain EXACTLY the documents you were given. Never add a document. Never remove one. Never change a documentType.
3. Copy "category" and "required" for each document unchanged. They are decided by embassy rules, not by you.
4. For every item provide "name" with translations in "en", "uz" and "ru".
5. "appliesToThisApplicant" must be a boolean. When true, "reasonIfApplies" explains why in one sentence.
6. "priority" is a positive integer, 1 is the most urgent. Order by how early the applicant should start preparing the document.
7. "reasoning" holds "whyNeeded", "embassyConcern" and "tip", each one or two sentences, written for the applicant.
8. Statements about the applicant must follow from the profile you were given. If the profile says a fact is unknown, do not assert it either way.

Response shape:
{
  "checklist": [
    {
      "id": "string",
      "documentType": "string, copied from input",
      "category": "copied from input",
      "required": "copied from input",
      "name": {"en": "...", "uz": "...", "ru": "..."},
      "description": "string",
      "appliesToThisApplicant": true,
      "reasonIfApplies": "string",
      "group": "copied from input",
      "priority": 1,
      "dependsOn": [],
      "reasoning": {"whyNeeded": "...", "embassyConcern": "...", "tip": "..."}
    }
  ],
  "notes": "optional string for the applicant"
}`

// buildUserPrompt renders the applicant profile and the immutable base set.
// The base set is embedded as JSON so the collaborator sees the exact values
// it has to echo back.
func buildUserPrompt(appCtx *models.CanonicalContext, base []models.BaseDocumentEntry) (string, error) {
	baseJSON, err := json.MarshalIndent(base, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal base documents: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Destination: %s, visa type: %s, planned stay: %d days.\n\n",
		appCtx.Intent.CountryCode, appCtx.Intent.VisaType, appCtx.Intent.DurationDays)

	b.WriteString("Applicant profile:\n")
	fmt.Fprintf(&b, "- Citizenship: %s\n", appCtx.Identity.Citizenship)
	fmt.Fprintf(&b, "- Employment status: %s", appCtx.Identity.EmploymentStatus)
	if appCtx.Identity.EmploymentMonths > 0 {
		fmt.Fprintf(&b, " (%d months)", appCtx.Identity.EmploymentMonths)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Sponsor: %s\n", appCtx.Identity.SponsorType)
	fmt.Fprintf(&b, "- Financial sufficiency: %s (ratio %.2f)\n",
		appCtx.Financial.SufficiencyLabel, appCtx.Financial.SufficiencyRatio)
	fmt.Fprintf(&b, "- Ties to home country: %s\n", appCtx.Ties.Label)
	fmt.Fprintf(&b, "- Travel history: %s, %d countries visited, %d previous rejections\n",
		appCtx.TravelHistory.Label, appCtx.TravelHistory.CountriesVisited, appCtx.TravelHistory.PreviousRejections)
	fmt.Fprintf(&b, "- Risk level: %s\n", appCtx.Risk.Level)
	fmt.Fprintf(&b, "- Has children: %s\n", appCtx.Identity.HasChildren)
	fmt.Fprintf(&b, "- Owns property: %s\n", appCtx.Ties.OwnsProperty)
	fmt.Fprintf(&b, "- Invitation: %s\n", appCtx.Intent.HasInvitation)

	b.WriteString("\nDocuments to enrich, copy these exactly:\n")
	b.Write(baseJSON)
	b.WriteString("\n")

	return b.String(), nil
}
