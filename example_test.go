package tabula_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/tabula"
	"github.com/aretw0/tabula/internal/adapters/script"
	"github.com/aretw0/tabula/pkg/adapters/memory"
	"github.com/aretw0/tabula/pkg/domain"
)

// ExampleNew_memory drives a session over an in-memory table with a scripted
// decision-maker, so no file or model is involved.
func ExampleNew_memory() {
	loader, err := memory.NewFromColumns("sales", []string{"region", "amount"}, map[string][]any{
		"region": {"north", "south", "east"},
		"amount": {10, 20, 30},
	})
	if err != nil {
		log.Fatal(err)
	}

	consultant := script.NewConsultant(
		script.Step{Say: "Checking the size.", Command: domain.NewCall("c1", domain.TableOp{FunctionName: "shape"})},
		script.Step{Command: domain.NewCall("c2", domain.TableOp{FunctionName: "keys"})},
		script.Step{Say: "The table has 3 rows."},
	)

	engine, err := tabula.New(tabula.WithConsultant(consultant), tabula.WithLoader(loader))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	session, err := engine.Start(ctx, "How many rows are there?", "sales")
	if err != nil {
		log.Fatal(err)
	}
	for !session.Finished() {
		if session, err = engine.Step(ctx, session); err != nil {
			log.Fatal(err)
		}
	}

	for _, step := range session.Steps {
		fmt.Println(step.Result)
	}
	fmt.Println(session.Answer())

	// Output:
	// [3,2]
	// ["region","amount"]
	// The table has 3 rows.
}
