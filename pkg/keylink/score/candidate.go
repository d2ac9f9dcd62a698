package score

// Candidate is a transient projection of a knowledge-base entity plus
// the signals derived while scoring it against one keyword. Created per
// keyword query and discarded once a winner is chosen.
type Candidate struct {
	ID          string
	Label       string
	Description string
	Aliases     []string
	Language    string

	Sitelinks    int
	AliasCount   int
	HasSubclass  bool
	InstanceOf   []string
	SubclassOf   []string
	TypeText     string
	SubclassText string

	TypeBonus   float64
	DomainBonus float64
	DomainHits  []string

	// Derived while scoring
	LabelSimilarity float64
	ContextSim      float64
	ContextTypeSim  float64
	ContextSubSim   float64
	Canonicality    float64
	ExactLabel      bool
	ExactAlias      bool
	Mode            string
	BaseScore       float64
	Score           float64
}
