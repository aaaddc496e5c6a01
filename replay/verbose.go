package replay

import (
	"io"
	"log"
	"strings"

	"github.com/sarchlab/akita/v4/sim"
)

// VerboseHook logs every access together with its outcomes, for example
// "M 20,1 miss eviction hit".
type VerboseHook struct {
	*log.Logger
}

// NewVerboseHook creates a VerboseHook that writes to w.
func NewVerboseHook(w io.Writer) *VerboseHook {
	return &VerboseHook{Logger: log.New(w, "", 0)}
}

// Func logs AccessEvents and ignores anything else.
func (h *VerboseHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosAccess {
		return
	}

	event, ok := ctx.Detail.(AccessEvent)
	if !ok {
		return
	}

	outcomes := make([]string, len(event.Outcomes))
	for i, o := range event.Outcomes {
		outcomes[i] = o.String()
	}

	h.Printf("%s %s", event.Access, strings.Join(outcomes, " "))
}
