package reason

import "fmt"

const answerPrompt = `Use the following context to answer the query.

Use the tools only if necessary, else answer using the provided data.
Context:
%s

Query:
%s

If you use the tools mention the values and the steps that you used to get the answer.
Answer as helpfully and concisely as possible.`

// BuildPrompt renders the single user instruction the model receives.
func BuildPrompt(contextBlob, query string) string {
	return fmt.Sprintf(answerPrompt, contextBlob, query)
}
