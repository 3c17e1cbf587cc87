package reef

import "context"

// Retriever fetches context for a query, combined into a single text blob
// the agent splices into the system prompt.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// retrievalHeader introduces retrieved context in the system prompt.
const retrievalHeader = "\nHere is the context to use to answer the user's question:\n"
