package vision

// Phase instructions. OCR asks for verbatim transcription only; the
// description phase is told to skip prose the OCR pass already covers so the
// two blocks stay disjoint.

const ocrInstruction = `Transcribe ALL visible text in this document image exactly as it appears.
Pay special attention to: headers, titles, institutional names, course codes, and footers.
Do not summarize, interpret, or reorder the text. Output only the transcription.`

const describeInstruction = `Describe the visual structure of this document image.
- Diagrams and charts: describe every node, arrow, label, axis, and trend, and explain the flow.
- Formulas: transcribe them.
- Tables: describe their structure and notable cells.
Skip plain paragraphs of prose; those are covered by a separate transcription pass.
If the page has no visual structure beyond text, say so in one short sentence.`
