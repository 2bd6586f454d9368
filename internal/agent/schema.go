package agent

// ClauseReference cites one contract clause that supports the answer. The
// text must be quoted from the contract, not paraphrased — grounding
// validation rejects citations that do not appear in the retrieved clauses.
type ClauseReference struct {
	// ID labels the clause as it appeared in the retrieval context,
	// e.g. "Clause 2".
	ID string `json:"id"`
	// Text is the quoted clause text.
	Text string `json:"text"`
}

// LegalResponse is the structured answer schema the model must produce for
// every question. All four fields are required; obligations and risks may be
// empty when the question touches neither.
type LegalResponse struct {
	// Summary is a plain-language answer to the question.
	Summary string `json:"summary"`
	// Obligations lists the duties the contract imposes that are relevant to
	// the question.
	Obligations []string `json:"obligations"`
	// Risks lists penalties, liabilities, and exposure relevant to the
	// question.
	Risks []string `json:"risks"`
	// SupportingClauses cites the contract text the answer rests on.
	SupportingClauses []ClauseReference `json:"supporting_clauses"`
}
