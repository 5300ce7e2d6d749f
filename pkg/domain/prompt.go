package domain

import (
	"encoding/json"
	"fmt"
)

// SystemPrompt frames the decision-maker's role.
const SystemPrompt = "You are acting as a data analysis agent, working with tabular data operations to fulfil a user request."

// Preamble opens the first requester message.
const Preamble = `Your starting point is a table containing the data set to be analyzed to fulfil the request.
You can call table and series operations as described in the tools in order to perform your analysis.

You have access to a stack of tables, where the initial element is the data set to be analyzed. You also have a single
register that can store a series and is overwritten when a new one is returned.
When you don't need intermediate results at the top of the stack, please pop them off to keep the size manageable.
When you have determined the final answer to the user request, or are stuck and cannot go further, please provide your
final reply without using a tool.`

// RequestText builds the first requester message from the request and the workspace overview.
func RequestText(request, overview string) string {
	quoted, err := json.Marshal(request)
	if err != nil {
		quoted = []byte(fmt.Sprintf("%q", request))
	}
	return fmt.Sprintf("%s\n\nUser request: %s\n\n%s", Preamble, quoted, WorkspaceText(overview))
}

// WorkspaceText labels a stack and register overview.
func WorkspaceText(overview string) string {
	return "Stack and Register\n" + overview
}
