package reef

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// placeholderRe matches {{name}} template placeholders.
var placeholderRe = regexp.MustCompile(`{{(\w+)}}`)

// RenderTemplate substitutes {{name}} placeholders with values from vars.
// String values are substituted directly; []string values are joined with
// newlines. Unknown placeholders are left verbatim — templates may be
// partially specialized, so an unmatched placeholder is not an error.
func RenderTemplate(template string, vars TemplateVariables) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := match[2 : len(match)-2]
		value, ok := vars[key]
		if !ok {
			return match
		}
		switch v := value.(type) {
		case string:
			return v
		case []string:
			return strings.Join(v, "\n")
		default:
			return fmt.Sprint(v)
		}
	})
}

// defaultPromptTemplate builds the default system prompt from the agent's
// name and description.
func defaultPromptTemplate(name, description string) string {
	return fmt.Sprintf(`You are a %s.
%s
Provide helpful and accurate information based on your expertise.
You will engage in an open-ended conversation, providing helpful and
accurate information based on your expertise.
The conversation will proceed as follows:
- The human may ask an initial question or provide a prompt on any topic.
- You will provide a relevant and informative response.
- The human may then follow up with additional questions or prompts related
  to your previous response, allowing for a multi-turn dialogue on that topic.
- Or, the human may switch to a completely new and unrelated topic at any point.
- You will seamlessly shift your focus to the new topic, providing thoughtful
  and coherent responses based on your broad knowledge base.
Throughout the conversation, you should aim to:
- Understand the context and intent behind each new question or prompt.
- Provide substantive and well-reasoned responses that directly address the query.
- Draw insights and connections from your extensive knowledge when appropriate.
- Ask for clarification if any part of the question or prompt is ambiguous.
- Maintain a consistent, respectful, and engaging tone tailored to the
  human's communication style.
- Seamlessly transition between topics as the human introduces new subjects.`, name, description)
}

// composeSystemPrompt renders the prompt template and, when a retriever is
// configured, appends retrieved context for the input under a fixed header.
func (a *Agent) composeSystemPrompt(ctx context.Context, input string) (string, error) {
	prompt := RenderTemplate(a.promptTemplate, a.promptVariables)
	if a.retriever == nil {
		return prompt, nil
	}
	retrieved, err := a.retriever.Retrieve(ctx, input)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	return prompt + retrievalHeader + retrieved, nil
}
