package llm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// BuildMatchSystemPrompt instructs the model to pick one catalog entry or none.
func BuildMatchSystemPrompt() string {
	return strings.Join([]string{
		"You match text recognized from invoices and order documents to a product catalog.",
		"The text may contain OCR errors, transliteration (Cyrillic/Latin) and extra words such as quantities or units.",
		"Pick the single catalog entry the text refers to, using only ids from the provided list.",
		"If no entry fits, return record_id null.",
		"confidence is 0..100. Return ONLY JSON that matches the provided schema.",
	}, " ")
}

// BuildMatchUserPrompt lists the query and the candidate entries.
func BuildMatchUserPrompt(req MatchRequest) string {
	var b strings.Builder
	b.WriteString("Recognized text:\n")
	b.WriteString(req.Query)
	b.WriteString("\n\nCatalog entries (JSON lines):\n")
	for _, e := range req.Sample {
		line, _ := json.Marshal(e)
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// BuildColumnsSystemPrompt instructs the model to locate column roles in a table sample.
func BuildColumnsSystemPrompt() string {
	return strings.Join([]string{
		"You analyze the first rows of a spreadsheet of products.",
		"Find the header row, the column holding article numbers or product codes (identifier),",
		"and the column holding product names or descriptions (descriptive).",
		"Rows and columns are numbered from 1; use 0 when something is absent.",
		"Return ONLY JSON that matches the provided schema.",
	}, " ")
}

// BuildColumnsUserPrompt renders the sample as numbered rows of tab-separated cells.
func BuildColumnsUserPrompt(sample [][]string) string {
	var b strings.Builder
	b.WriteString("Table sample:\n")
	for i, row := range sample {
		b.WriteString("row ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(": ")
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}
