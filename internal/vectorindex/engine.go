package vectorindex

func newEngine(s Strategy) searchEngine {
	switch s {
	case StrategyHNSW:
		return newHNSWEngine()
	case StrategyIVFFlat:
		return newIVFFlatEngine()
	case StrategyIVFPQ:
		return newIVFPQEngine()
	default:
		return newFlatEngine()
	}
}
