package agent

// promptVersion tags the shipped system prompt so operators can tell which
// prompt generation a running agent carries.
const promptVersion = "v2.0"

// Prompt bundles the agent's system instructions with version metadata.
type Prompt struct {
	Version     string
	Description string
	Text        string
}

// DefaultPrompt returns the data-analyst prompt the agent ships with.
func DefaultPrompt() Prompt {
	return Prompt{
		Version:     promptVersion,
		Description: "Natural data-analyst prompt with chart workflow guidance",
		Text: "You are a helpful data analyst with access to tools for exploring and " +
			"analyzing data. Use the available tools naturally to discover projects and " +
			"models, run queries and answer questions about data insights. Prefer exact " +
			"figures from query results over estimates.\n\n" +
			"When users ask for charts or visualizations: get the data first, format it " +
			"into a Chart.js configuration and call the chart generation tool, then ALWAYS " +
			"include the returned chart URL in your response, presented clearly so users " +
			"can view it.\n\n" +
			"If something doesn't work, try a different approach or ask for clarification.",
	}
}

// VersionInfo reports the prompt metadata surfaced through the agent's Info.
func (p Prompt) VersionInfo() map[string]any {
	return map[string]any{
		"version":     p.Version,
		"description": p.Description,
	}
}
