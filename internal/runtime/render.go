package runtime

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/tabular"
)

// DefaultPreviewRows is how many rows a table or series summary shows.
const DefaultPreviewRows = 5

// Rendering is the classified form of an Outcome: the blocks to report and the
// store mutation to perform. At most one of Push and Register is set.
type Rendering struct {
	Blocks   []domain.Block
	Push     *tabular.Table
	Register *tabular.Series
	Kind     domain.Outcome
}

// Classifier turns outcomes into renderings.
type Classifier struct {
	PreviewRows int
}

// Classify is a pure function of the outcome. A captured chart takes priority
// over any raw value.
func (c Classifier) Classify(out Outcome) Rendering {
	rows := c.PreviewRows
	if rows <= 0 {
		rows = DefaultPreviewRows
	}

	if out.Chart != nil {
		return Rendering{
			Blocks: []domain.Block{domain.ImageBlock(out.Chart.MediaType, out.Chart.Data)},
			Kind:   domain.OutcomeChart,
		}
	}

	switch v := out.Raw.(type) {
	case *tabular.Table:
		return Rendering{
			Blocks: []domain.Block{domain.TextBlock("Table\n" + v.Preview(rows))},
			Push:   v,
			Kind:   domain.OutcomeTable,
		}
	case *tabular.Series:
		return Rendering{
			Blocks:   []domain.Block{domain.TextBlock("Series\n" + v.Preview(rows))},
			Register: v,
			Kind:     domain.OutcomeSeries,
		}
	case nil:
		return Rendering{Blocks: []domain.Block{domain.TextBlock("done")}, Kind: domain.OutcomeNone}
	}
	return Rendering{Blocks: []domain.Block{domain.TextBlock(FormatValue(out.Raw))}, Kind: domain.OutcomeValue}
}

// Apply performs the rendering's store mutation.
func (r Rendering) Apply(store *tabular.Store) {
	switch {
	case r.Push != nil:
		store.Push(r.Push)
	case r.Register != nil:
		store.SetRegister(r.Register)
	}
}

// FormatValue renders a scalar, string or collection result as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "done"
	case string:
		if x == "" {
			return "done"
		}
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return tabular.FormatValue(x)
	case int:
		return strconv.Itoa(x)
	case fmt.Stringer:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
