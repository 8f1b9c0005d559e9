package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/smsbatch/smsbatch/internal/types"
)

// GroupNamer names the groups of one ingestion run
type GroupNamer interface {
	Name(batchIndex int) string
}

type runGroupNamer struct {
	prefix string
	label  string
}

// NewGroupNamer returns a namer producing "<prefix> <label> #<n>" where n is
// the 1-based batch number. The label is the UTC date of now plus a short
// random id, so names of different runs do not collide.
func NewGroupNamer(prefix string, now time.Time) GroupNamer {
	return &runGroupNamer{
		prefix: strings.TrimSpace(prefix),
		label:  now.UTC().Format("20060102") + "-" + types.GenerateShortID(6),
	}
}

func (n *runGroupNamer) Name(batchIndex int) string {
	return fmt.Sprintf("%s %s #%d", n.prefix, n.label, batchIndex+1)
}
