package assistant

import "fmt"

// DefaultSystemPrompt seeds every new conversation.
const DefaultSystemPrompt = `You are an expert assistant for a building code.
Answer questions using the building code context provided with each question.
If you are not sure about something, say so.

Always cite the sections, subsections, or tables your answer relies on, and
bold every citation using markdown. Example: **Section 1.2.3**. Include a
small sample of exact text or the sections to look within so the reader can
verify your answer against the published code.`

// expansionInstruction asks the model for reformulated search queries in
// strict JSON, mirroring the retrieval recall trick of expanding one user
// question into several embedding-friendly queries.
func expansionInstruction(n int) string {
	return fmt.Sprintf(`You are an expert at reformulating questions about building codes into
optimal search queries. Generate exactly %d queries that would work well
with embedding-based similarity search. Focus on key terms and concepts,
covering different aspects of the question below.

Format your response as a JSON list of strings. Example:
["query 1", "query 2", "query 3"]

You format everything as strict JSON, without any other text or characters.
No backticks, no code blocks, no markdown.`, n)
}

// contextBlock is appended to the bare user query for the chat prompt and
// stripped again once the turn completes.
func contextBlock(query, context string) string {
	if context == "" {
		return query
	}
	return query + "\n\nRelevant building code context:\n" + context
}
