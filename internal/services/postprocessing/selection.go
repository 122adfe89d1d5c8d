package postprocessing

import (
	"cutwatch-worker-go/internal/models"
)

// DefaultAlertCap bounds individual alerts when no cap is configured
const DefaultAlertCap = 10

// Select picks at most alertCap detections spread evenly across the ledger.
// Item i is ledger position floor(i*N/cap), so the first detection is always
// included and no position repeats.
func Select(ledger models.DetectionLedger, alertCap int) models.AlertSelection {
	if alertCap <= 0 {
		alertCap = DefaultAlertCap
	}
	total := ledger.Len()

	sel := models.AlertSelection{
		TotalCount: total,
		Cap:        alertCap,
		Truncated:  total > alertCap,
	}
	if total == 0 {
		return sel
	}

	if total <= alertCap {
		sel.Items = append([]models.Detection(nil), ledger.Detections...)
		sel.Positions = make([]int, total)
		for i := range sel.Positions {
			sel.Positions[i] = i
		}
		return sel
	}

	sel.Items = make([]models.Detection, 0, alertCap)
	sel.Positions = make([]int, 0, alertCap)
	for i := 0; i < alertCap; i++ {
		pos := i * total / alertCap
		sel.Positions = append(sel.Positions, pos)
		sel.Items = append(sel.Items, ledger.Detections[pos])
	}
	return sel
}
