package compare

// Align merges two per-image result sets into pairs keyed by image id.
//
// Output order is deterministic: ids from leftResults in their original
// order first, then ids appearing only in rightResults in their original
// order. Duplicate ids within one side and invariant violations are
// reported as InputErrors; the offending records are skipped, never
// silently overwritten.
func Align(leftResults, rightResults []ScanOutcome) ([]AlignedPair, []InputError) {
	var inputErrs []InputError

	leftByID, leftOrder := indexSide(SideLeft, leftResults, &inputErrs)
	rightByID, rightOrder := indexSide(SideRight, rightResults, &inputErrs)

	pairs := make([]AlignedPair, 0, len(leftOrder)+len(rightOrder))
	for _, id := range leftOrder {
		pair := AlignedPair{ImageID: id, Left: leftByID[id]}
		if right, ok := rightByID[id]; ok {
			pair.Right = right
		}
		pairs = append(pairs, pair)
	}
	for _, id := range rightOrder {
		if _, ok := leftByID[id]; ok {
			continue
		}
		pairs = append(pairs, AlignedPair{ImageID: id, Right: rightByID[id]})
	}

	return pairs, inputErrs
}

func indexSide(side Side, results []ScanOutcome, inputErrs *[]InputError) (map[string]*ScanOutcome, []string) {
	byID := make(map[string]*ScanOutcome, len(results))
	order := make([]string, 0, len(results))

	for i := range results {
		outcome := results[i]
		if ie := validateOutcome(side, outcome); ie != nil {
			*inputErrs = append(*inputErrs, *ie)
			continue
		}
		if _, exists := byID[outcome.ImageID]; exists {
			*inputErrs = append(*inputErrs, InputError{
				Side:    side,
				ImageID: outcome.ImageID,
				Reason:  "duplicate image id",
			})
			continue
		}
		byID[outcome.ImageID] = &outcome
		order = append(order, outcome.ImageID)
	}

	return byID, order
}
