package pipeline

// Stage names the states of the run.
type Stage string

const (
	StageStart     Stage = "START"
	StageIngestion Stage = "INGESTION"
	StageRetrieval Stage = "RETRIEVAL"
	StageReasoning Stage = "REASONING"
	StageEnd       Stage = "END"
)

// Route is the single routing decision, taken once at entry.
type Route int

const (
	RouteDirectRetrieval Route = iota
	RouteNeedsIngestion
)

func DecideRoute(docsPresent bool) Route {
	if docsPresent {
		return RouteNeedsIngestion
	}
	return RouteDirectRetrieval
}

func (r Route) String() string {
	switch r {
	case RouteNeedsIngestion:
		return "needs_ingestion"
	case RouteDirectRetrieval:
		return "direct_retrieval"
	default:
		return "unknown"
	}
}

func (r Route) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Plan lists the stages between START and END. Retrieval always precedes
// Reasoning and nothing repeats.
func (r Route) Plan() []Stage {
	if r == RouteNeedsIngestion {
		return []Stage{StageIngestion, StageRetrieval, StageReasoning}
	}
	return []Stage{StageRetrieval, StageReasoning}
}
