/*
Package runner drives a tabula session to completion.

It sits between the engine and the outside world: it steps the session until the
decision-maker stops (or a step cap is hit), persists the session after every step
when a store is configured, and reports progress through a pluggable Observer.

# Key Components

  - Runner: the execution loop.
  - Observer: receives the session start, every executed step and the final answer.
  - TextHandler: human-readable progress for terminals.
  - JSONHandler: one JSON object per line for scripts and pipelines.
  - SessionManager: loads a stored session or starts a new one under a given ID.

# Usage

	r := runner.NewRunner(
		runner.WithStore(store),
		runner.WithMaxSteps(20),
		runner.WithObserver(runner.NewTextHandler(os.Stdout)),
	)

	session, err := r.RunSession(ctx, engine, "sales-q3", "Which region sells the most?", "sales.csv")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(session.Answer())
*/
package runner
