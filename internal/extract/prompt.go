package extract

import "fmt"

// extractionSystemPrompt is the shared system instruction for report
// extraction.
const extractionSystemPrompt = `You are a consumer credit report analyst. You are reading raw credit report text and extracting every tradeline, the consumer identity block, and bureau scores into structured JSON.

Rules:
- Extract ONLY what the document states; never infer or fill gaps
- Copy values verbatim as strings, including currency symbols and formatting
- Return one valid JSON object and nothing else
- Use "" for any value the document does not state
- Confidence is an integer 0-100 reflecting how legible and unambiguous the record is
- Include EVERY tradeline, even ones that look incomplete or duplicated

Response shape:
{
  "identity": {"name": "", "address": "", "ssn_last4": "", "birth_year": "", "confidence": 0, "source": ""},
  "scores": {"equifax": 0, "experian": 0, "transunion": 0},
  "tradelines": [
    {"creditor": "", "account_number": "", "account_type": "", "balance": "", "credit_limit": "", "past_due": "", "date_opened": "", "date_closed": "", "last_activity": "", "status": "", "reported_at": "", "confidence": 0, "source": ""}
  ]
}
Omit score keys the document does not state.`

// buildExtractionPrompt wraps one report document for the user turn.
func buildExtractionPrompt(source, text string) string {
	return fmt.Sprintf(`Extract the structured report data from the following document.
Set "source" on every record to %q.

--- BEGIN REPORT ---
%s
--- END REPORT ---`, source, text)
}
