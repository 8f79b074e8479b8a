package rag

import (
	"fmt"
	"strings"

	"github.com/poiesic/askit/core"
)

// NoInformationAnswer is the canonical reply for questions the knowledge
// base cannot answer. The guardrail substitutes it verbatim whenever zero
// candidates survived retrieval and the model answered anyway.
const NoInformationAnswer = "I could not find any information about that in the knowledge base."

const answerPromptTemplate = `You are a careful assistant answering questions from a private knowledge base.

Answer the user's question using only the numbered context passages below. Cite a passage inline as [n] when it supports a statement.

Rules:
- Use only facts stated in the context. Do not bring in outside knowledge.
- If the context does not contain the answer, reply exactly: %s
- Answer in the language of the question.
- Be concise. Do not restate the question or these rules.

Context:
%s`

const rewriteResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "standalone_question": {
      "type": "string"
    }
  },
  "required": ["standalone_question"],
  "additionalProperties": false
}`

const rewritePromptTemplate = `You rewrite the latest question in a conversation so it can be understood without the rest of the conversation. Respond with a single JSON object, starting with an opening brace { and ending with a closing brace }. Your output must exactly follow this schema:

%s

Rules:
- Resolve pronouns and references ("it", "that one", "the second option") against the transcript.
- Keep the user's intent and wording where possible. Never answer the question.
- If the question already stands alone, return it unchanged.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Transcript:
user: who designed the eiffel tower?
assistant: Gustave Eiffel's engineering company designed it.
Question: "when was it built?"
Output:
{"standalone_question":"when was the eiffel tower built?"}

Example:
Transcript:
user: how do i rotate an api key?
assistant: Use the credentials page in the admin console.
Question: "what is our refund policy?"
Output:
{"standalone_question":"what is our refund policy?"}`

// buildAnswerSystemPrompt embeds the assembled context into the answer
// instructions. An empty context still produces a complete prompt so the
// model has a defined way out.
func buildAnswerSystemPrompt(contextBlock string) string {
	if contextBlock == "" {
		contextBlock = "(no passages matched the question)"
	}
	return fmt.Sprintf(answerPromptTemplate, NoInformationAnswer, contextBlock)
}

// buildRewriteSystemPrompt creates the rewrite instructions with the
// response schema embedded.
func buildRewriteSystemPrompt() string {
	return fmt.Sprintf(rewritePromptTemplate, rewriteResponseSchema)
}

// buildRewriteUserPrompt renders the role-tagged transcript and the
// current question.
func buildRewriteUserPrompt(history []core.Message, question string) string {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	for _, message := range history {
		b.WriteString(message.Role.String())
		b.WriteString(": ")
		b.WriteString(message.Content)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Question: %q", question)
	return b.String()
}
