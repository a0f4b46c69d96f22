package alerts

import (
	"github.com/mohamedkhairy/coin-alerts/internal/models"
)

// Evaluate decides which of the given alerts fire against the snapshot.
//
// It is a pure function: no clock, no I/O, no mutation of its inputs. Side
// effects of a firing (history record, disable, broadcast) are applied by
// the caller. The result follows the input order of the alerts.
//
// Firing is strict: PRICE_ABOVE fires iff price > threshold, PRICE_BELOW
// iff price < threshold. Equality never fires; these are "cross" alerts,
// not "reached" alerts. Disabled alerts and alerts whose asset is absent
// from the snapshot are skipped silently.
func Evaluate(snapshot *models.PriceSnapshot, alertList []*models.Alert) []*models.FiredAlert {
	fired := make([]*models.FiredAlert, 0)

	for _, alert := range alertList {
		if !alert.Enabled {
			continue
		}

		price, ok := snapshot.Lookup(alert.AssetID)
		if !ok {
			// Price currently unknown: not an error, not a firing
			continue
		}

		fires := (alert.Kind == models.KindPriceAbove && price > alert.Threshold) ||
			(alert.Kind == models.KindPriceBelow && price < alert.Threshold)
		if !fires {
			continue
		}

		fired = append(fired, &models.FiredAlert{
			Alert: alert,
			Price: price,
		})
	}

	return fired
}
