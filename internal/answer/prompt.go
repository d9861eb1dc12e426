package answer

import (
	"fmt"
	"strings"

	"docchat/internal/chunk"
)

const systemPrompt = `You are a helpful document assistant. You answer questions based on the provided document context.

Guidelines:
- Use ONLY the information provided in the context to answer questions
- If the context doesn't contain relevant information, say "I cannot find information about that in the document"
- Be concise and accurate
- Quote specific parts of the document when relevant
- If you're unsure, admit it rather than making up information

Context will be provided with each question.`

const contextualPromptTemplate = `Based on the following context from the document, please answer the question:

CONTEXT:
%s

QUESTION: %s

Please provide a clear, accurate answer based only on the information in the context above.`

const noContextPromptTemplate = `No relevant context found in the document.

Question: %s

Please let the user know that you cannot find relevant information in the document to answer their question.`

// formatContext renders retrieved chunks as numbered context blocks placed
// ahead of the question.
func formatContext(chunks []chunk.Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "[Chunk %d]:\n%s\n\n", i+1, c.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// userPrompt builds the final user message from the retrieved context and
// the query.
func userPrompt(query string, chunks []chunk.Chunk) string {
	context := formatContext(chunks)
	if strings.TrimSpace(context) == "" {
		return fmt.Sprintf(noContextPromptTemplate, query)
	}
	return fmt.Sprintf(contextualPromptTemplate, context, query)
}
