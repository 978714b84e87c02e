package ai

import "fmt"

const detectSystemPrompt = `You are a financial document analyst. You identify which ` +
	`reporting periods a document covers and classify the document type. ` +
	`Respond with JSON only.`

const financialsSystemPrompt = `You are a financial analyst. You extract aggregate ` +
	`financial metrics from business documents. Respond with JSON only.`

func detectUserPrompt(text, filename string) string {
	return fmt.Sprintf(`Analyze the following document and determine every reporting period (year and month) it covers, plus its document type.

Filename: %s

Document content:
%s

Rules:
- A document may cover multiple periods (e.g. a quarterly report covers three months).
- Prefer periods stated in the document body over the filename, but use the filename as a hint when the body is ambiguous.
- Document types are short lowercase labels such as "invoice", "bank_statement", "payroll", "income_statement", "receipt".
- Confidence is an integer from 0 to 100.

Respond with JSON in exactly this shape:
{
  "periods": [{"year": 2024, "month": 7, "confidence": 90}],
  "tags": ["invoice"],
  "confidence": 90
}`, filename, text)
}

func financialsUserPrompt(text string, year, month int) string {
	return fmt.Sprintf(`Extract aggregate financial metrics for %d-%02d from the following documents.

Document content:
%s

Rules:
- revenue is total income for the period.
- expenses is total spending for the period.
- profit is revenue minus expenses.
- cash_flow is the net change in cash position.
- All values are numbers in the document's currency. Use 0 when a value cannot be determined.
- analysis_notes is a short summary of how the figures were derived.

Respond with JSON in exactly this shape:
{
  "revenue": 0,
  "expenses": 0,
  "profit": 0,
  "cash_flow": 0,
  "analysis_notes": ""
}`, year, month, text)
}
