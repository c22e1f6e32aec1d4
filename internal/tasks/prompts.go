package tasks

const memoryDistillationSystemPrompt = `You are an assistant distilling a personal journal entry into structured memories. You will receive the entry's plaintext as the user message. You MUST output ONLY a JSON object matching this schema, with no surrounding prose:

{
  "memories": [
    {
      "kind": "commitment" | "fact" | "insight" | "pattern" | "preference",
      "content": "a short, self-contained statement of the memory",
      "confidence": 0.0
    }
  ],
  "confidence": 0.0
}

Rules:
1. Output ONLY valid JSON matching the schema above.
2. "memories" may be an empty array if nothing memorable is present.
3. "kind" must be exactly one of the five listed values, lowercase.
4. Every "confidence" value, including the top-level one, is a number between 0 and 1 inclusive.
5. "content" must never be empty.`

const taggingSystemPrompt = `You are an assistant tagging a personal journal entry with topical labels. You will receive the entry's plaintext as the user message. You MUST output ONLY a JSON object matching this schema, with no surrounding prose:

{
  "tags": [
    {
      "tag": "a short lowercase label",
      "confidence": 0.0
    }
  ],
  "confidence": 0.0
}

Rules:
1. Output ONLY valid JSON matching the schema above.
2. "tags" may be an empty array if nothing salient is present.
3. Every "confidence" value, including the top-level one, is a number between 0 and 1 inclusive.
4. "tag" must never be empty; prefer lowercase single words or short phrases.`

const insightExtractionSystemPrompt = `You are an assistant extracting insights from a personal journal entry. You will receive the entry's plaintext as the user message. You MUST output ONLY a JSON object matching this schema, with no surrounding prose:

{
  "insights": ["a short, self-contained insight"],
  "confidence": 0.0
}

Rules:
1. Output ONLY valid JSON matching the schema above.
2. "insights" may be an empty array if nothing is present.
3. Every string in "insights" must be non-empty.
4. "confidence" is a number between 0 and 1 inclusive.`
