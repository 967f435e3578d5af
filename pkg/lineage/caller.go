package lineage

import (
	"time"

	"github.com/Ramsey-B/willow/pkg/metrics"
	"github.com/Ramsey-B/willow/pkg/models"
)

// Caller carries what the invoker of a build supplies: the identity the repository is read as,
// the zones it may see and, optionally, its own list of lineage-relevant classifications.
type Caller struct {
	UserID         string
	SupportedZones []string
	// LineageClassifications overrides the handler's list when not nil.
	LineageClassifications []string
}

func (c Caller) classificationFilter() ClassificationFilter {
	if c.LineageClassifications == nil {
		return nil
	}
	return NewClassificationFilter(c.LineageClassifications)
}

func observeBuild(builder string, start time.Time, out *models.LineageContext, err error) {
	metrics.RecordBuild(builder, err, time.Since(start).Seconds(), out.Len())
}
