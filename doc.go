/*
Package tabula is a model-directed data-analysis interpreter.

A decision-maker (usually a language model) answers a free-text request about a
data set by issuing one structured command at a time against a workspace: a stack
of tables, whose bottom element is the loaded data set, and a single series
register. Tabula executes each command, renders the result as text or as a chart
image, and feeds it back until the decision-maker replies without a command.

# Concept

The workspace is only ever changed by four commands:

  - dataframe_operation: call a named table operation on a stack slot. Table
    results are pushed, series results replace the register.
  - series_operation: call a named series operation on the register.
  - pop: remove the top table.
  - series_assign: write the register as a column of the top table.

Operation failures never end a session. They are reported to the decision-maker
as error results so it can correct course. Only an unreadable source or an
unreachable decision-maker is surfaced to the caller.

# Usage

	engine, err := tabula.New(tabula.WithConsultant(consultant))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	session, err := engine.Start(ctx, "Which region sells the most?", "sales.csv")
	if err != nil {
		log.Fatal(err)
	}

	// Main loop: execute the pending command, consult again.
	for !session.Finished() {
		session, err = engine.Step(ctx, session)
		if err != nil {
			log.Fatal(err)
		}
	}
	fmt.Println(session.Answer())

Sessions are plain values and can be persisted between steps with any
ports.SessionStore; pkg/runner wraps the loop with persistence and progress
reporting.
*/
package tabula
