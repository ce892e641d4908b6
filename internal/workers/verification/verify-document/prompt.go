// internal/workers/verification/verify-document/prompt.go
package verifydocument

import (
	"encoding/json"
	"fmt"
	"strings"

	"visabuddy-engine/internal/common/validation"
)

const systemPrompt = `You are a meticulous embassy document verifier. You check one uploaded document against one requirement and return a verdict.

Rules:
1. Return a JSON object only. No prose before or after it.
2. "status" is one of "APPROVED", "NEED_FIX", "REJECTED". When in doubt, prefer "NEED_FIX" over "APPROVED". Never approve a document you could not actually verify.
3. "embassy_risk_level" is one of "LOW", "MEDIUM", "HIGH".
4. "short_reason" is one sentence the applicant will read.
5. "notes" carries applicant guidance in "en", "uz" and "ru".
6. "validationDetails" holds booleans for "typeMatch", "completeness", "financialValid", "datesValid", "formatCompliant". Omit an aspect you could not assess.
7. Base every statement on the document text and metadata you were given. Do not invent dates, amounts or names.

Response shape:
{
  "status": "APPROVED",
  "short_reason": "string",
  "notes": {"en": "...", "uz": "...", "ru": "..."},
  "embassy_risk_level": "LOW",
  "technical_notes": "string, optional",
  "validationDetails": {"typeMatch": true, "completeness": true, "financialValid": true, "datesValid": true, "formatCompliant": true}
}`

func buildUserPrompt(input *Input, maxDocumentChars int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Document type: %s\nDestination: %s, visa type: %s\n",
		input.DocumentType, input.CountryCode, input.VisaType)

	if input.DocumentRule != nil {
		if input.DocumentRule.ValidityRequirements != "" {
			fmt.Fprintf(&b, "Validity requirements: %s\n", input.DocumentRule.ValidityRequirements)
		}
		if input.DocumentRule.FormatRequirements != "" {
			fmt.Fprintf(&b, "Format requirements: %s\n", input.DocumentRule.FormatRequirements)
		}
	}
	if input.TravelDate != "" {
		fmt.Fprintf(&b, "Planned travel date: %s\n", input.TravelDate)
	}
	if input.MinValidityMonths > 0 {
		fmt.Fprintf(&b, "Document must remain valid %d months past the travel date.\n", input.MinValidityMonths)
	}

	if input.ExtractionMetadata != nil {
		meta, err := json.Marshal(input.ExtractionMetadata)
		if err == nil {
			fmt.Fprintf(&b, "\nExtracted metadata:\n%s\n", meta)
		}
	}

	b.WriteString("\nDocument text:\n")
	b.WriteString(validation.TruncateString(input.DocumentText, maxDocumentChars))
	b.WriteString("\n")

	return b.String()
}
