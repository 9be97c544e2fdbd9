package usecase

import (
	"time"

	"github.com/user/shouldipickitup/internal/entity"
)

// Assembler turns accepted items into the persisted record for a source.
type Assembler struct {
	now func() time.Time
}

func NewAssembler(now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{now: now}
}

// Assemble keeps the first min(len(accepted), howmany) items in acceptance
// order and renumbers them 1..N. The record is stamped with the current time.
func (a *Assembler) Assemble(sourceURL string, accepted []entity.AcceptedItem, howmany int) entity.SourceRecord {
	n := min(len(accepted), max(howmany, 0))

	items := make([]entity.AcceptedItem, n)
	for i := range n {
		items[i] = accepted[i]
		items[i].Ordinal = i + 1
	}

	return entity.SourceRecord{
		SourceURL:   sourceURL,
		LastCrawled: a.now().UTC(),
		Items:       items,
	}
}
